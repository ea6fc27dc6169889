// pubsub-provision creates the Pub/Sub topics the backend publishes to
// and a pull subscription for the trigger consumer. Safe to re-run;
// existing topics and subscriptions are left alone.
//
// Usage:
//   PUBSUB_PROJECT_ID=... PUBSUB_TOPIC=... PUBSUB_NOTIFICATION_TOPIC=... go run ./cmd/pubsub-provision
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	triggerTopic := os.Getenv("PUBSUB_TOPIC")
	if triggerTopic == "" {
		fmt.Fprintln(os.Stderr, "PUBSUB_TOPIC is required")
		os.Exit(2)
	}
	notificationTopic := os.Getenv("PUBSUB_NOTIFICATION_TOPIC")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = triggerTopic + "-consumer"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pubsub client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	topic, err := config.CreateTopicIfNotExists(client, triggerTopic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to provision topic %q: %v\n", triggerTopic, err)
		os.Exit(1)
	}
	fmt.Printf("topic ready: %s\n", topic.ID())

	sub, err := config.CreateSubscriptionIfNotExists(client, subscription, topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to provision subscription %q: %v\n", subscription, err)
		os.Exit(1)
	}
	fmt.Printf("subscription ready: %s\n", sub.ID())

	if notificationTopic != "" {
		topic, err := config.CreateTopicIfNotExists(client, notificationTopic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to provision topic %q: %v\n", notificationTopic, err)
			os.Exit(1)
		}
		fmt.Printf("topic ready: %s\n", topic.ID())
	}
}
