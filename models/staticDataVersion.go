package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaticDataVersion lets clients detect stale reference data with one
// cheap read: each counter bumps when the matching data set changes.
type StaticDataVersion struct {
	DealerId          string `gorm:"primary_key;size:64" json:"dealerID"`
	VerCustomer       int64  `gorm:"not null;default:0" json:"verCustomer"`
	VerItemStockPrice int64  `gorm:"not null;default:0" json:"verItemStockPrice"`
	VerSalesperson    int64  `gorm:"not null;default:0" json:"verSalesperson"`
}

func staticDataColumn(kind StaticDataKind) (string, error) {
	switch kind {
	case StaticDataCustomers:
		return "ver_customer", nil
	case StaticDataItems:
		return "ver_item_stock_price", nil
	case StaticDataSalespersons:
		return "ver_salesperson", nil
	default:
		return "", errors.New("unknown static data kind")
	}
}

// UpdateVersionOfStaticData bumps the dealer's counter for the kind
// with an atomic upsert-increment and drops the cached row.
func UpdateVersionOfStaticData(ctx context.Context, dealerId string, kind StaticDataKind) error {
	return UpdateVersionOfStaticDataTx(config.GetDB(), ctx, dealerId, kind)
}

// UpdateVersionOfStaticDataTx is the transactional variant used by the
// trigger workflows.
func UpdateVersionOfStaticDataTx(db *gorm.DB, ctx context.Context, dealerId string, kind StaticDataKind) error {
	column, err := staticDataColumn(kind)
	if err != nil {
		return err
	}

	row := StaticDataVersion{DealerId: dealerId}
	switch kind {
	case StaticDataCustomers:
		row.VerCustomer = 1
	case StaticDataItems:
		row.VerItemStockPrice = 1
	case StaticDataSalespersons:
		row.VerSalesperson = 1
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dealer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column: gorm.Expr(column+" + ?", 1),
		}),
	}).Create(&row).Error; err != nil {
		return err
	}
	return utils.RemoveRedisItem[StaticDataVersion](dealerId)
}

// TrackVersionOfStaticData reads the dealer's counters, redis-cached.
func TrackVersionOfStaticData(ctx context.Context) (*StaticDataVersion, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}

	version, err := utils.RetrieveRedis[StaticDataVersion](dealerId)
	if err != nil {
		return nil, err
	}
	if version != nil {
		return version, nil
	}

	db := config.GetDB()
	var row StaticDataVersion
	err = db.WithContext(ctx).Where("dealer_id = ?", dealerId).First(&row).Error
	if err != nil {
		// no changes recorded yet
		row = StaticDataVersion{DealerId: dealerId}
	}
	if err := utils.StoreRedis[StaticDataVersion](&row, dealerId); err != nil {
		return nil, err
	}
	return &row, nil
}
