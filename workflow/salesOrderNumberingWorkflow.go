package workflow

import (
	"context"
	"encoding/json"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessSalesOrderNumberingWorkflow assigns the dealer-scoped serial
// number to a freshly settled order. Numbers are unique and
// monotonically assigned per dealer; assignment order is the outbox
// order, not creation order.
func ProcessSalesOrderNumberingWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	ctx := context.Background()

	if msg.Action == models.ActionCreate {
		var order models.SalesOrder
		if err := json.Unmarshal(msg.NewObj, &order); err != nil {
			config.LogError(logger, "salesOrderNumberingWorkflow.go", "ProcessSalesOrderNumberingWorkflow", "Unmarshal NewObj", msg.NewObj, err)
			return err
		}

		// The order may already carry a number when a stale STARTED
		// idempotency row let the message retry past the allocator.
		var existingNo *string
		if err := tx.WithContext(ctx).Model(&models.SalesOrder{}).
			Where("id = ? AND dealer_id = ?", order.ID, msg.DealerId).
			Select("sales_order_no").Scan(&existingNo).Error; err != nil {
			config.LogError(logger, "salesOrderNumberingWorkflow.go", "ProcessSalesOrderNumberingWorkflow", "ReadSalesOrderNo", order.ID, err)
			return err
		}
		if existingNo == nil {
			serial, err := models.NextSalesOrderSerial(tx, ctx, msg.DealerId)
			if err != nil {
				config.LogError(logger, "salesOrderNumberingWorkflow.go", "ProcessSalesOrderNumberingWorkflow", "NextSalesOrderSerial", msg.DealerId, err)
				return err
			}
			if err := models.AssignSalesOrderNo(tx, ctx, msg.DealerId, order.ID, serial); err != nil {
				config.LogError(logger, "salesOrderNumberingWorkflow.go", "ProcessSalesOrderNumberingWorkflow", "AssignSalesOrderNo", order.ID, err)
				return err
			}
		}
	}

	return tx.Model(&models.TriggerMessageRecord{}).Where("id = ?", msg.ID).
		Update("is_processed", true).Error
}
