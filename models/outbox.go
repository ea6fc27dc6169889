package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TriggerMessageRecord is the transactional outbox row for catalog and
// order trigger events. It is written inside the caller's DB transaction;
// publishing to Pub/Sub is performed asynchronously by the outbox
// dispatcher after commit.
type TriggerMessageRecord struct {
	ID            int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	DealerId      string    `gorm:"size:64;not null;index" json:"dealer_id"`
	OccurredAt    time.Time `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   string    `gorm:"size:64;index" json:"reference_id"`
	ReferenceType string    `gorm:"size:30;not null" json:"reference_type"`
	Action        string    `gorm:"size:1;not null" json:"action"`
	OldObj        []byte    `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte    `gorm:"type:blob" json:"new_obj"`
	IsProcessed   bool      `gorm:"index;not null" json:"is_processed"`
	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (consumer/worker)
	LastProcessError *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt      *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record TriggerMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		DealerId:      record.DealerId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: record.ReferenceType,
		Action:        record.Action,
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

// PublishTriggerEvent writes the message record inside the caller's DB
// transaction but does NOT publish to Pub/Sub. Publishing is performed
// asynchronously by the outbox dispatcher after commit.
func PublishTriggerEvent(ctx context.Context, tx *gorm.DB, dealerId string, refId string, refType string, action string, oldObj interface{}, newObj interface{}) error {

	var oldObjInByte []byte
	var newObjInByte []byte
	var err error

	if action == ActionCreate || action == ActionUpdate {
		newObjInByte, err = json.Marshal(newObj)
		if err != nil {
			return err
		}
	}
	if action == ActionUpdate || action == ActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := TriggerMessageRecord{
		DealerId:      dealerId,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		OldObj:        oldObjInByte,
		NewObj:        newObjInByte,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
