package models

import (
	"context"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Replicated item fields. Changes to any other item field stay on the
// item document and never fan out.
const (
	trackedFieldCanUploadFile    = "can_upload_file"
	trackedFieldItemDescription  = "item_description"
	trackedFieldCategory         = "category"
	trackedFieldIsActive         = "is_active"
	trackedFieldIsDeleted        = "is_deleted"
	trackedFieldManufacturer     = "manufacturer"
	trackedFieldItemImageThumURL = "item_image_thum_url"
	trackedFieldStockMaintained  = "stock_maintained"
)

// TrackedItemFieldChanges compares the replicated fields of two item
// snapshots and returns the changed columns with their new values.
func TrackedItemFieldChanges(old *Item, updated *Item) map[string]interface{} {
	changes := map[string]interface{}{}
	if old.CanUploadFile != updated.CanUploadFile {
		changes[trackedFieldCanUploadFile] = updated.CanUploadFile
	}
	if old.ItemDescription != updated.ItemDescription {
		changes[trackedFieldItemDescription] = updated.ItemDescription
	}
	if old.Category != updated.Category {
		changes[trackedFieldCategory] = updated.Category
	}
	if old.IsActive != updated.IsActive {
		changes[trackedFieldIsActive] = updated.IsActive
	}
	if old.IsDeleted != updated.IsDeleted {
		changes[trackedFieldIsDeleted] = updated.IsDeleted
	}
	if old.Manufacturer != updated.Manufacturer {
		changes[trackedFieldManufacturer] = updated.Manufacturer
	}
	if old.ItemImageThumURL != updated.ItemImageThumURL {
		changes[trackedFieldItemImageThumURL] = updated.ItemImageThumURL
	}
	if old.StockMaintained != updated.StockMaintained {
		changes[trackedFieldStockMaintained] = updated.StockMaintained
	}
	return changes
}

// ApplyItemReplication copies the changed replicated values onto every
// package of the item, then fans them out to all stock lots in one
// batched update. A failed package write is logged and does not abort
// the remaining packages. Re-running with the same values is a no-op
// merge.
func ApplyItemReplication(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, dealerId string, itemId string, changes map[string]interface{}) error {
	if len(changes) == 0 {
		return nil
	}

	var packageIds []string
	if err := tx.WithContext(ctx).Model(&ItemPackage{}).
		Where("dealer_id = ? AND item_id = ?", dealerId, itemId).
		Pluck("id", &packageIds).Error; err != nil {
		return err
	}

	for _, packageId := range packageIds {
		if err := tx.WithContext(ctx).Model(&ItemPackage{}).
			Where("id = ? AND dealer_id = ?", packageId, dealerId).
			Updates(changes).Error; err != nil {
			config.LogError(logger, "models", "ApplyItemReplication",
				"package merge failed", map[string]interface{}{
					"dealerId":  dealerId,
					"itemId":    itemId,
					"packageId": packageId,
				}, err)
			continue
		}
	}

	if err := tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("dealer_id = ? AND item_id = ?", dealerId, itemId).
		Updates(changes).Error; err != nil {
		return err
	}
	return nil
}
