package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

// ItemStockPrice is the stock lot: one price point of one package.
// BalanceQty is null when the item does not maintain stock.
type ItemStockPrice struct {
	ID               string           `gorm:"primary_key;size:64" json:"itemStockPriceID"`
	DealerId         string           `gorm:"size:64;not null;index" json:"dealerID"`
	ItemId           string           `gorm:"size:64;not null;index" json:"itemID"`
	ItemName         string           `gorm:"size:255" json:"itemName"`
	ItemDescription  string           `gorm:"size:500" json:"itemDescription"`
	Category         string           `gorm:"size:100" json:"category"`
	Manufacturer     string           `gorm:"size:255" json:"manufacturer"`
	ItemImageThumURL string           `gorm:"size:500" json:"itemImageThumURL"`
	CanUploadFile    bool             `gorm:"not null;default:0" json:"canUploadFile"`
	StockMaintained  bool             `gorm:"not null;default:1" json:"stockMaintained"`
	ItemPackageId    string           `gorm:"size:64;not null;index" json:"itemPackageID"`
	PackageSize      string           `gorm:"size:50" json:"packageSize"`
	PackageUnit      string           `gorm:"size:50" json:"packageUnit"`
	Mrp              decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"mrp"`
	SellingPrice     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"sellingPrice"`
	StockQty         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"stockQty"`
	BalanceQty       *decimal.Decimal `gorm:"type:decimal(20,4)" json:"balanceQty"`
	AreaCode         string           `gorm:"size:30;index" json:"areaCode"`
	Tags             StringSlice      `gorm:"type:json" json:"tags"`
	IsActive         bool             `gorm:"not null;default:1" json:"isActive"`
	IsDeleted        bool             `gorm:"not null;default:0" json:"isDeleted"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewItemStockPrice struct {
	ItemPackageId string          `json:"itemPackageID" binding:"required"`
	Mrp           decimal.Decimal `json:"mrp"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	StockQty      decimal.Decimal `json:"stockQty"`
	AreaCode      string          `json:"areaCode"`
	Tags          []string        `json:"tags"`
}

func newLotFromPackage(dealerId string, pkg *ItemPackage, input NewItemStockPrice) ItemStockPrice {
	lot := ItemStockPrice{
		ID:               utils.NewDocumentId(),
		DealerId:         dealerId,
		ItemId:           pkg.ItemId,
		ItemName:         pkg.ItemName,
		ItemDescription:  pkg.ItemDescription,
		Category:         pkg.Category,
		Manufacturer:     pkg.Manufacturer,
		ItemImageThumURL: pkg.ItemImageThumURL,
		CanUploadFile:    pkg.CanUploadFile,
		StockMaintained:  pkg.StockMaintained,
		ItemPackageId:    pkg.ID,
		PackageSize:      pkg.PackageSize,
		PackageUnit:      pkg.PackageUnit,
		Mrp:              input.Mrp,
		SellingPrice:     input.SellingPrice,
		StockQty:         input.StockQty,
		AreaCode:         input.AreaCode,
		Tags:             StringSlice(input.Tags),
		IsActive:         true,
		IsDeleted:        false,
	}
	if pkg.StockMaintained {
		balance := input.StockQty
		lot.BalanceQty = &balance
	}
	return lot
}

// UploadItemStockPrices creates lots row by row. A failed row is logged
// and skipped; the rest proceed. The item static-data version is bumped
// once at the end so clients refetch.
func UploadItemStockPrices(ctx context.Context, rows []NewItemStockPrice) ([]*ItemStockPrice, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()
	logger := config.GetLogger()

	created := make([]*ItemStockPrice, 0, len(rows))
	for i, input := range rows {
		pkg, err := utils.FetchModel[ItemPackage](ctx, dealerId, input.ItemPackageId)
		if err != nil {
			config.LogError(logger, "models", "UploadItemStockPrices",
				"package not found", map[string]interface{}{
					"dealerId": dealerId,
					"row":      i,
				}, err)
			continue
		}
		lot := newLotFromPackage(dealerId, pkg, input)
		if err := db.WithContext(ctx).Create(&lot).Error; err != nil {
			config.LogError(logger, "models", "UploadItemStockPrices",
				"lot create failed", map[string]interface{}{
					"dealerId":      dealerId,
					"itemPackageId": input.ItemPackageId,
					"row":           i,
				}, err)
			continue
		}
		created = append(created, &lot)
	}

	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataItems); err != nil {
		return created, err
	}
	return created, nil
}

func GetItemStockPricesList(ctx context.Context) ([]*ItemStockPrice, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()
	var lots []*ItemStockPrice
	if err := db.WithContext(ctx).
		Where("dealer_id = ? AND is_deleted = ?", dealerId, false).
		Order("item_name, package_size, mrp").Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// DeleteItemStockPrices soft deletes the given lots in bulk.
func DeleteItemStockPrices(ctx context.Context, ids []string) (int64, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return 0, errors.New("dealer id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("dealer_id = ? AND id IN ?", dealerId, ids).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false})
	if result.Error != nil {
		return 0, result.Error
	}
	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataItems); err != nil {
		return result.RowsAffected, err
	}
	return result.RowsAffected, nil
}
