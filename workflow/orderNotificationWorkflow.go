package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PushPayload struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	FcmTokens     []string `json:"fcmTokens"`
	DealerId      string   `json:"dealerId"`
	SalesOrderId  string   `json:"salesOrderId"`
	CorrelationId string   `json:"correlationId"`
}

// ProcessOrderNotificationWorkflow pushes an order-status-change
// notification to the customer's registered devices. Delivery is best
// effort: a publish failure is logged and the message still completes.
func ProcessOrderNotificationWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	ctx := context.Background()

	if msg.Action == models.ActionUpdate && config.PushNotificationsEnabled() {
		var oldOrder models.SalesOrder
		if err := json.Unmarshal(msg.OldObj, &oldOrder); err != nil {
			config.LogError(logger, "orderNotificationWorkflow.go", "ProcessOrderNotificationWorkflow", "Unmarshal OldObj", msg.OldObj, err)
			return err
		}
		var newOrder models.SalesOrder
		if err := json.Unmarshal(msg.NewObj, &newOrder); err != nil {
			config.LogError(logger, "orderNotificationWorkflow.go", "ProcessOrderNotificationWorkflow", "Unmarshal NewObj", msg.NewObj, err)
			return err
		}

		tokens, err := customerFcmTokens(tx, msg.DealerId, newOrder.CustomerExternalCode)
		if err != nil {
			config.LogError(logger, "orderNotificationWorkflow.go", "ProcessOrderNotificationWorkflow", "customerFcmTokens", newOrder.CustomerExternalCode, err)
			return err
		}
		if len(tokens) > 0 {
			orderNo := "processing"
			if newOrder.SalesOrderNo != nil {
				orderNo = *newOrder.SalesOrderNo
			}
			payload := PushPayload{
				Title:         "Order status changed!",
				Body:          fmt.Sprintf("Order %s moved from %s to %s", orderNo, oldOrder.OrderStatus, newOrder.OrderStatus),
				FcmTokens:     tokens,
				DealerId:      msg.DealerId,
				SalesOrderId:  newOrder.ID,
				CorrelationId: msg.CorrelationId,
			}
			if err := config.PublishPushNotification(ctx, payload); err != nil {
				config.LogError(logger, "orderNotificationWorkflow.go", "ProcessOrderNotificationWorkflow", "PublishPushNotification", payload.SalesOrderId, err)
				// best effort, do not retry the whole message
			}
		}
	}

	return tx.Model(&models.TriggerMessageRecord{}).Where("id = ?", msg.ID).
		Update("is_processed", true).Error
}

func customerFcmTokens(tx *gorm.DB, dealerId string, customerExternalCode string) ([]string, error) {
	if customerExternalCode == "" {
		return nil, nil
	}

	var profileIds []string
	if err := tx.Model(&models.DealerUserMapping{}).
		Where("dealer_id = ? AND customer_external_code = ?", dealerId, customerExternalCode).
		Pluck("user_profile_id", &profileIds).Error; err != nil {
		return nil, err
	}
	if len(profileIds) == 0 {
		return nil, nil
	}

	var profiles []models.UserProfile
	if err := tx.Where("id IN ?", profileIds).Find(&profiles).Error; err != nil {
		return nil, err
	}
	tokens := make([]string, 0)
	for _, p := range profiles {
		tokens = append(tokens, p.FcmTokens...)
	}
	return tokens, nil
}
