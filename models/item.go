package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

// ItemPackageSummary is the embedded package list on the item document.
// It is kept in sync with the item_packages rows by the package CRUD.
type ItemPackageSummary struct {
	PackageId   string `json:"packageId"`
	PackageSize string `json:"packageSize"`
	PackageUnit string `json:"packageUnit"`
}

type ItemPackageSummaryList []ItemPackageSummary

func (l ItemPackageSummaryList) Value() (driver.Value, error) {
	if l == nil {
		l = ItemPackageSummaryList{}
	}
	return json.Marshal(l)
}

func (l *ItemPackageSummaryList) Scan(value interface{}) error {
	if value == nil {
		*l = ItemPackageSummaryList{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

type Item struct {
	ID               string                 `gorm:"primary_key;size:64" json:"itemID"`
	DealerId         string                 `gorm:"size:64;not null;index" json:"dealerID"`
	ItemName         string                 `gorm:"size:255;not null" json:"itemName"`
	ItemDescription  string                 `gorm:"size:500" json:"itemDescription"`
	Category         string                 `gorm:"size:100" json:"category"`
	Manufacturer     string                 `gorm:"size:255" json:"manufacturer"`
	ItemImageThumURL string                 `gorm:"size:500" json:"itemImageThumURL"`
	CanUploadFile    bool                   `gorm:"not null;default:0" json:"canUploadFile"`
	StockMaintained  bool                   `gorm:"not null;default:1" json:"stockMaintained"`
	IsActive         bool                   `gorm:"not null;default:1" json:"isActive"`
	IsDeleted        bool                   `gorm:"not null;default:0" json:"isDeleted"`
	PackageSummaries ItemPackageSummaryList `gorm:"type:json" json:"packages"`
	Packages         []ItemPackage          `gorm:"foreignKey:ItemId;references:ID" json:"-"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewItem struct {
	ItemName         string `json:"itemName" binding:"required"`
	ItemDescription  string `json:"itemDescription"`
	Category         string `json:"category"`
	Manufacturer     string `json:"manufacturer"`
	ItemImageThumURL string `json:"itemImageThumURL"`
	CanUploadFile    *bool  `json:"canUploadFile"`
	StockMaintained  *bool  `json:"stockMaintained"`
}

func CreateItem(ctx context.Context, input NewItem) (*Item, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	if err := utils.ValidateUnique[Item](db.WithContext(ctx), "item_name", input.ItemName, dealerId, ""); err != nil {
		return nil, errors.New("item name already exists")
	}

	stockMaintained := true
	if input.StockMaintained != nil {
		stockMaintained = *input.StockMaintained
	}
	item := Item{
		ID:               utils.NewDocumentId(),
		DealerId:         dealerId,
		ItemName:         input.ItemName,
		ItemDescription:  input.ItemDescription,
		Category:         input.Category,
		Manufacturer:     input.Manufacturer,
		ItemImageThumURL: input.ItemImageThumURL,
		CanUploadFile:    input.CanUploadFile != nil && *input.CanUploadFile,
		StockMaintained:  stockMaintained,
		IsActive:         true,
		IsDeleted:        false,
		PackageSummaries: ItemPackageSummaryList{},
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishTriggerEvent(ctx, tx, dealerId, item.ID, ReferenceTypeItem, ActionCreate, nil, item); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisList[Item](dealerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &item, tx.Commit().Error
}

type ModifyItemInput struct {
	ItemName         *string `json:"itemName"`
	ItemDescription  *string `json:"itemDescription"`
	Category         *string `json:"category"`
	Manufacturer     *string `json:"manufacturer"`
	ItemImageThumURL *string `json:"itemImageThumURL"`
	CanUploadFile    *bool   `json:"canUploadFile"`
	StockMaintained  *bool   `json:"stockMaintained"`
	IsActive         *bool   `json:"isActive"`
}

// ModifyItem merges the input onto the item. When any replicated field
// changed, an outbox row is written in the same transaction so the
// replication workflow fans the change out to packages and stock lots
// after commit.
func ModifyItem(ctx context.Context, id string, input ModifyItemInput) (*Item, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	old, err := utils.FetchModel[Item](ctx, dealerId, id)
	if err != nil {
		return nil, errors.New("item not found")
	}

	updated := *old
	if input.ItemName != nil {
		if err := utils.ValidateUnique[Item](db.WithContext(ctx), "item_name", *input.ItemName, dealerId, id); err != nil {
			return nil, errors.New("item name already exists")
		}
		updated.ItemName = *input.ItemName
	}
	if input.ItemDescription != nil {
		updated.ItemDescription = *input.ItemDescription
	}
	if input.Category != nil {
		updated.Category = *input.Category
	}
	if input.Manufacturer != nil {
		updated.Manufacturer = *input.Manufacturer
	}
	if input.ItemImageThumURL != nil {
		updated.ItemImageThumURL = *input.ItemImageThumURL
	}
	if input.CanUploadFile != nil {
		updated.CanUploadFile = *input.CanUploadFile
	}
	if input.StockMaintained != nil {
		updated.StockMaintained = *input.StockMaintained
	}
	if input.IsActive != nil {
		updated.IsActive = *input.IsActive
	}

	changes := TrackedItemFieldChanges(old, &updated)

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&Item{}).Where("id = ? AND dealer_id = ?", id, dealerId).
		Updates(map[string]interface{}{
			"item_name":           updated.ItemName,
			"item_description":    updated.ItemDescription,
			"category":            updated.Category,
			"manufacturer":        updated.Manufacturer,
			"item_image_thum_url": updated.ItemImageThumURL,
			"can_upload_file":     updated.CanUploadFile,
			"stock_maintained":    updated.StockMaintained,
			"is_active":           updated.IsActive,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(changes) > 0 {
		if err := PublishTriggerEvent(ctx, tx, dealerId, id, ReferenceTypeItem, ActionUpdate, old, updated); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisList[Item](dealerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &updated, tx.Commit().Error
}

// DeleteItem soft deletes the item and cascades the flag to its
// packages. The deletion is a tracked change, so the replication
// workflow propagates is_deleted to the stock lots as well.
func DeleteItem(ctx context.Context, id string) (*Item, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	old, err := utils.FetchModel[Item](ctx, dealerId, id)
	if err != nil {
		return nil, errors.New("item not found")
	}

	updated := *old
	updated.IsDeleted = true
	updated.IsActive = false

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&Item{}).Where("id = ? AND dealer_id = ?", id, dealerId).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&ItemPackage{}).Where("item_id = ? AND dealer_id = ?", id, dealerId).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := PublishTriggerEvent(ctx, tx, dealerId, id, ReferenceTypeItem, ActionUpdate, old, updated); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.RemoveRedisList[Item](dealerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &updated, tx.Commit().Error
}

func GetItem(ctx context.Context, id string) (*Item, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	return utils.FetchModel[Item](ctx, dealerId, id)
}

func GetItemsList(ctx context.Context) ([]*Item, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	cached, err := utils.RetrieveRedisList[Item](dealerId)
	if err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var items []*Item
	if err := db.WithContext(ctx).Where("dealer_id = ? AND is_deleted = ?", dealerId, false).
		Order("item_name").Find(&items).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Item](items, dealerId); err != nil {
		config.LogError(config.GetLogger(), "models", "GetItemsList", "cache item list", dealerId, err)
	}
	return items, nil
}
