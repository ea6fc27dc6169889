package main

import (
	"context"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessMessage runs one trigger message inside a single DB
// transaction, serialized per dealer via a MySQL advisory lock and
// deduplicated with DB-backed idempotency keys.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-dealer ordering across instances.
		if err := workflow.AcquireDealerPostingLock(tx.WithContext(ctx), m.DealerId); err != nil {
			return err
		}
		defer workflow.ReleaseDealerPostingLock(tx.WithContext(ctx), m.DealerId)

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := workflow.BeginIdempotency(tx.WithContext(ctx), m.DealerId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		// IMPORTANT: do not call tx.Commit()/tx.Rollback() inside db.Transaction.
		// Returning error triggers rollback; returning nil commits.
		if err := ProcessWorkflow(tx.WithContext(ctx), logger, m); err != nil {
			_ = workflow.MarkIdempotencyFailed(tx.WithContext(ctx), m.DealerId, handlerName, messageId, err)
			return err
		}
		if err := workflow.MarkIdempotencySucceeded(tx.WithContext(ctx), m.DealerId, handlerName, messageId); err != nil {
			return err
		}
		return nil
	})
}

func ProcessWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	switch msg.ReferenceType {
	case models.ReferenceTypeItem:
		return workflow.ProcessItemReplicationWorkflow(tx, logger, msg)
	case models.ReferenceTypeSalesOrder:
		return workflow.ProcessSalesOrderNumberingWorkflow(tx, logger, msg)
	case models.ReferenceTypeSalesOrderStatus:
		return workflow.ProcessOrderNotificationWorkflow(tx, logger, msg)
	case models.ReferenceTypePurchaseOrder, models.ReferenceTypeExternalUser:
		// Audit-only events: no worker-side effect beyond completion.
		return markMessageProcessed(tx, msg.ID)
	default:
		// Unknown reference types are dropped permanently; retrying
		// would loop forever.
		logger.WithFields(logrus.Fields{
			"field":          "ProcessWorkflow",
			"dealer_id":      msg.DealerId,
			"reference_type": msg.ReferenceType,
			"message_id":     msg.ID,
		}).Warn("unknown reference type; dropping message")
		return markMessageProcessed(tx, msg.ID)
	}
}

func markMessageProcessed(tx *gorm.DB, recordId int) error {
	now := time.Now().UTC()
	return tx.Model(&models.TriggerMessageRecord{}).Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"is_processed": true,
			"processed_at": &now,
		}).Error
}
