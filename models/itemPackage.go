package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"gorm.io/gorm"
)

// ItemPackage is a sellable packaging of an item. The replicated item
// fields are denormalized onto it so list endpoints need no join; the
// replication workflow keeps them current.
type ItemPackage struct {
	ID               string    `gorm:"primary_key;size:64" json:"packageId"`
	DealerId         string    `gorm:"size:64;not null;index" json:"dealerID"`
	ItemId           string    `gorm:"size:64;not null;index" json:"itemID"`
	ItemName         string    `gorm:"size:255" json:"itemName"`
	ItemDescription  string    `gorm:"size:500" json:"itemDescription"`
	Category         string    `gorm:"size:100" json:"category"`
	Manufacturer     string    `gorm:"size:255" json:"manufacturer"`
	ItemImageThumURL string    `gorm:"size:500" json:"itemImageThumURL"`
	CanUploadFile    bool      `gorm:"not null;default:0" json:"canUploadFile"`
	StockMaintained  bool      `gorm:"not null;default:1" json:"stockMaintained"`
	IsActive         bool      `gorm:"not null;default:1" json:"isActive"`
	IsDeleted        bool      `gorm:"not null;default:0" json:"isDeleted"`
	PackageSize      string    `gorm:"size:50;not null" json:"packageSize"`
	PackageUnit      string    `gorm:"size:50;not null" json:"packageUnit"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewItemPackage struct {
	ItemId      string `json:"itemID" binding:"required"`
	PackageSize string `json:"packageSize" binding:"required"`
	PackageUnit string `json:"packageUnit" binding:"required"`
}

func packageSizeUnitExists(tx *gorm.DB, ctx context.Context, itemId string, size string, unit string, excludeId string) (bool, error) {
	var count int64
	query := tx.WithContext(ctx).Model(&ItemPackage{}).
		Where("item_id = ? AND package_size = ? AND package_unit = ? AND is_deleted = ?", itemId, size, unit, false)
	if excludeId != "" {
		query = query.Where("id <> ?", excludeId)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func writePackageSummaries(tx *gorm.DB, ctx context.Context, item *Item, summaries ItemPackageSummaryList) error {
	return tx.WithContext(ctx).Model(&Item{}).Where("id = ?", item.ID).
		Update("package_summaries", summaries).Error
}

// CreateItemPackage inserts the package row and appends it to the
// item's embedded package-summary list in one transaction.
func CreateItemPackage(ctx context.Context, input NewItemPackage) (*ItemPackage, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	item, err := utils.FetchModel[Item](ctx, dealerId, input.ItemId)
	if err != nil {
		return nil, errors.New("item not found")
	}

	dup, err := packageSizeUnitExists(db, ctx, item.ID, input.PackageSize, input.PackageUnit, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, errors.New("package size and unit already exists for this item")
	}

	pkg := ItemPackage{
		ID:               utils.NewDocumentId(),
		DealerId:         dealerId,
		ItemId:           item.ID,
		ItemName:         item.ItemName,
		ItemDescription:  item.ItemDescription,
		Category:         item.Category,
		Manufacturer:     item.Manufacturer,
		ItemImageThumURL: item.ItemImageThumURL,
		CanUploadFile:    item.CanUploadFile,
		StockMaintained:  item.StockMaintained,
		IsActive:         item.IsActive,
		IsDeleted:        false,
		PackageSize:      input.PackageSize,
		PackageUnit:      input.PackageUnit,
	}

	summaries := append(ItemPackageSummaryList{}, item.PackageSummaries...)
	summaries = append(summaries, ItemPackageSummary{
		PackageId:   pkg.ID,
		PackageSize: pkg.PackageSize,
		PackageUnit: pkg.PackageUnit,
	})

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&pkg).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := writePackageSummaries(tx, ctx, item, summaries); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](item.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &pkg, tx.Commit().Error
}

type ModifyItemPackageInput struct {
	PackageSize *string `json:"packageSize"`
	PackageUnit *string `json:"packageUnit"`
	IsActive    *bool   `json:"isActive"`
}

func ModifyItemPackage(ctx context.Context, id string, input ModifyItemPackageInput) (*ItemPackage, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	pkg, err := utils.FetchModel[ItemPackage](ctx, dealerId, id)
	if err != nil {
		return nil, errors.New("item package not found")
	}

	size := pkg.PackageSize
	unit := pkg.PackageUnit
	if input.PackageSize != nil {
		size = *input.PackageSize
	}
	if input.PackageUnit != nil {
		unit = *input.PackageUnit
	}
	dup, err := packageSizeUnitExists(db, ctx, pkg.ItemId, size, unit, id)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, errors.New("package size and unit already exists for this item")
	}

	item, err := utils.FetchModel[Item](ctx, dealerId, pkg.ItemId)
	if err != nil {
		return nil, errors.New("item not found")
	}

	updates := map[string]interface{}{
		"package_size": size,
		"package_unit": unit,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	summaries := append(ItemPackageSummaryList{}, item.PackageSummaries...)
	for i := range summaries {
		if summaries[i].PackageId == id {
			summaries[i].PackageSize = size
			summaries[i].PackageUnit = unit
		}
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&ItemPackage{}).Where("id = ? AND dealer_id = ?", id, dealerId).
		Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := writePackageSummaries(tx, ctx, item, summaries); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](item.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[ItemPackage](ctx, dealerId, id)
}

// DeleteItemPackage soft deletes the package and splices it out of the
// item's summary list. A missing package is a validation error.
func DeleteItemPackage(ctx context.Context, id string) (*ItemPackage, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	pkg, err := utils.FetchModel[ItemPackage](ctx, dealerId, id)
	if err != nil {
		return nil, errors.New("item package not found")
	}
	item, err := utils.FetchModel[Item](ctx, dealerId, pkg.ItemId)
	if err != nil {
		return nil, errors.New("item not found")
	}

	// Refuse to delete a package that still holds stock.
	openLots, err := utils.ResourceCountWhere[ItemStockPrice](db.WithContext(ctx), dealerId,
		"item_package_id = ? AND is_deleted = ? AND balance_qty > 0", id, false)
	if err != nil {
		return nil, err
	}
	if openLots > 0 {
		return nil, errors.New("item package has stock on hand")
	}

	summaries := make(ItemPackageSummaryList, 0, len(item.PackageSummaries))
	for _, s := range item.PackageSummaries {
		if s.PackageId != id {
			summaries = append(summaries, s)
		}
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&ItemPackage{}).Where("id = ? AND dealer_id = ?", id, dealerId).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := writePackageSummaries(tx, ctx, item, summaries); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](item.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	pkg.IsDeleted = true
	pkg.IsActive = false
	return pkg, tx.Commit().Error
}

func GetItemPackagesList(ctx context.Context) ([]*ItemPackage, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()
	var packages []*ItemPackage
	if err := db.WithContext(ctx).Where("dealer_id = ? AND is_deleted = ?", dealerId, false).
		Order("item_name, package_size").Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}
