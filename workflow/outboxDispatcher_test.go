package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDispatcherDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.TriggerMessageRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOutboxRow(t *testing.T, db *gorm.DB, attempts int) *models.TriggerMessageRecord {
	t.Helper()
	rec := models.TriggerMessageRecord{
		DealerId:        "d1",
		OccurredAt:      time.Now().UTC(),
		ReferenceId:     "ref-1",
		ReferenceType:   models.ReferenceTypeSalesOrder,
		Action:          models.ActionCreate,
		PublishStatus:   models.OutboxPublishStatusProcessing,
		PublishAttempts: attempts,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed outbox row: %v", err)
	}
	return &rec
}

func TestMarkPublishFailedSchedulesRetryWithBackoff(t *testing.T) {
	db := newDispatcherDB(t)
	d := NewOutboxDispatcher(db, logrus.New())

	rec := seedOutboxRow(t, db, 3)
	before := time.Now().UTC()
	d.markPublishFailed(context.Background(), rec.ID, rec.DealerId, errors.New("pubsub unavailable"), rec.PublishAttempts)

	var got models.TriggerMessageRecord
	if err := db.Where("id = ?", rec.ID).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PublishStatus != models.OutboxPublishStatusFailed {
		t.Fatalf("status = %s, want FAILED", got.PublishStatus)
	}
	if got.LastPublishError == nil || *got.LastPublishError != "pubsub unavailable" {
		t.Fatalf("last error = %v", got.LastPublishError)
	}
	if got.LockedAt != nil || got.LockedBy != nil {
		t.Fatal("failed row must release its lock")
	}
	// Attempt 3 doubles the initial backoff twice: 5s -> 20s.
	if got.NextAttemptAt == nil {
		t.Fatal("failed row must carry a retry time")
	}
	wantDelay := 20 * time.Second
	delay := got.NextAttemptAt.Sub(before)
	if delay < wantDelay-time.Second || delay > wantDelay+2*time.Second {
		t.Fatalf("retry delay = %s, want about %s", delay, wantDelay)
	}
}

func TestMarkPublishFailedBackoffIsCapped(t *testing.T) {
	db := newDispatcherDB(t)
	d := NewOutboxDispatcher(db, logrus.New())

	rec := seedOutboxRow(t, db, 15)
	before := time.Now().UTC()
	d.markPublishFailed(context.Background(), rec.ID, rec.DealerId, errors.New("still down"), rec.PublishAttempts)

	var got models.TriggerMessageRecord
	if err := db.Where("id = ?", rec.ID).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.NextAttemptAt == nil {
		t.Fatal("failed row must carry a retry time")
	}
	delay := got.NextAttemptAt.Sub(before)
	if delay > 10*time.Minute+2*time.Second {
		t.Fatalf("retry delay %s exceeds the 10 minute cap", delay)
	}
}

func TestMarkPublishFailedGoesDeadAfterMaxAttempts(t *testing.T) {
	db := newDispatcherDB(t)
	d := NewOutboxDispatcher(db, logrus.New())

	rec := seedOutboxRow(t, db, d.MaxAttempts)
	d.markPublishFailed(context.Background(), rec.ID, rec.DealerId, errors.New("poison"), rec.PublishAttempts)

	var got models.TriggerMessageRecord
	if err := db.Where("id = ?", rec.ID).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PublishStatus != models.OutboxPublishStatusDead {
		t.Fatalf("status = %s, want DEAD", got.PublishStatus)
	}
	if got.NextAttemptAt != nil {
		t.Fatal("dead rows must never be retried")
	}
}

func TestMarkPublishSentStampsMetadata(t *testing.T) {
	db := newDispatcherDB(t)
	d := NewOutboxDispatcher(db, logrus.New())

	rec := seedOutboxRow(t, db, 1)
	now := time.Now().UTC()
	d.markPublishSent(context.Background(), rec.ID, "pubsub-msg-42", now)

	var got models.TriggerMessageRecord
	if err := db.Where("id = ?", rec.ID).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("status = %s, want SENT", got.PublishStatus)
	}
	if got.PubSubMessageId == nil || *got.PubSubMessageId != "pubsub-msg-42" {
		t.Fatalf("pubsub message id = %v", got.PubSubMessageId)
	}
	if got.PublishedAt == nil {
		t.Fatal("sent row must record the publish time")
	}
	if got.LockedAt != nil || got.LockedBy != nil {
		t.Fatal("sent row must release its lock")
	}
}
