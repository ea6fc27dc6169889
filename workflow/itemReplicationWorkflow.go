package workflow

import (
	"context"
	"encoding/json"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessItemReplicationWorkflow fans a tracked item change out to the
// item's packages and stock lots. The whole fan-out runs inside the
// caller's transaction, so a transient failure retries the message as
// one unit.
func ProcessItemReplicationWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	ctx := context.Background()

	if msg.Action == models.ActionUpdate {
		var oldItem models.Item
		if err := json.Unmarshal(msg.OldObj, &oldItem); err != nil {
			config.LogError(logger, "itemReplicationWorkflow.go", "ProcessItemReplicationWorkflow", "Unmarshal OldObj", msg.OldObj, err)
			return err
		}
		var newItem models.Item
		if err := json.Unmarshal(msg.NewObj, &newItem); err != nil {
			config.LogError(logger, "itemReplicationWorkflow.go", "ProcessItemReplicationWorkflow", "Unmarshal NewObj", msg.NewObj, err)
			return err
		}

		changes := models.TrackedItemFieldChanges(&oldItem, &newItem)
		if len(changes) > 0 {
			if err := models.ApplyItemReplication(ctx, tx, logger, msg.DealerId, msg.ReferenceId, changes); err != nil {
				config.LogError(logger, "itemReplicationWorkflow.go", "ProcessItemReplicationWorkflow", "ApplyItemReplication", changes, err)
				return err
			}
			if err := models.UpdateVersionOfStaticDataTx(tx, ctx, msg.DealerId, models.StaticDataItems); err != nil {
				config.LogError(logger, "itemReplicationWorkflow.go", "ProcessItemReplicationWorkflow", "UpdateVersionOfStaticData", msg.DealerId, err)
				return err
			}
		}
	}
	// Create carries no fan-out: a fresh item has no packages or lots yet.

	return tx.Model(&models.TriggerMessageRecord{}).Where("id = ?", msg.ID).
		Update("is_processed", true).Error
}
