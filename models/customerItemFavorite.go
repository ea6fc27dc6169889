package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerItemFavorite remembers which stock lots a customer has
// ordered before, keyed {dealerID}{customerExternalCode}. Customers
// without an external system key on {dealerID}{dealerID}.
type CustomerItemFavorite struct {
	ID                   string      `gorm:"primary_key;size:128" json:"id"`
	DealerId             string      `gorm:"size:64;not null;index" json:"dealerID"`
	CustomerExternalCode string      `gorm:"size:64;not null" json:"customerExternalCode"`
	ItemStockPriceIds    StringSlice `gorm:"type:json" json:"itemStockPriceIDs"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func FavoriteKey(dealerId string, customerExternalCode string) string {
	if customerExternalCode == "" {
		return dealerId + dealerId
	}
	return dealerId + customerExternalCode
}

// MergeCustomerItemFavorites upserts the favorite row, merging the new
// stock-price references into the existing set.
func MergeCustomerItemFavorites(tx *gorm.DB, ctx context.Context, dealerId string, customerExternalCode string, itemStockPriceIds []string) error {
	if len(itemStockPriceIds) == 0 {
		return nil
	}
	key := FavoriteKey(dealerId, customerExternalCode)

	var existing CustomerItemFavorite
	err := tx.WithContext(ctx).Where("id = ?", key).First(&existing).Error
	if err == nil {
		merged := utils.UniqueSlice(append([]string(existing.ItemStockPriceIds), itemStockPriceIds...))
		return tx.WithContext(ctx).Model(&CustomerItemFavorite{}).Where("id = ?", key).
			Update("item_stock_price_ids", StringSlice(merged)).Error
	}

	code := customerExternalCode
	if code == "" {
		code = dealerId
	}
	favorite := CustomerItemFavorite{
		ID:                   key,
		DealerId:             dealerId,
		CustomerExternalCode: code,
		ItemStockPriceIds:    StringSlice(utils.UniqueSlice(itemStockPriceIds)),
	}
	// Two settlements can race to create the same key.
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"item_stock_price_ids": favorite.ItemStockPriceIds,
		}),
	}).Create(&favorite).Error
}

// GetFavoriteItemStockPriceReferences returns the customer's favorite
// lot ids for the dealer in context.
func GetFavoriteItemStockPriceReferences(ctx context.Context, customerExternalCode string) ([]string, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	var favorite CustomerItemFavorite
	err := db.WithContext(ctx).Where("id = ?", FavoriteKey(dealerId, customerExternalCode)).
		First(&favorite).Error
	if err != nil {
		return []string{}, nil
	}
	return favorite.ItemStockPriceIds, nil
}
