package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocSerialNumber holds the per-dealer sales order counter.
type DocSerialNumber struct {
	DealerId              string    `gorm:"primary_key;size:64" json:"dealerID"`
	SoCurrentSerialNumber int64     `gorm:"column:so_current_serial_number;not null;default:0" json:"soCurrentSerialNumber"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// NextSalesOrderSerial atomically increments the dealer's counter and
// returns the new value. The upsert-increment keeps concurrent
// allocations unique; assignment order is not creation order.
func NextSalesOrderSerial(tx *gorm.DB, ctx context.Context, dealerId string) (int64, error) {
	row := DocSerialNumber{
		DealerId:              dealerId,
		SoCurrentSerialNumber: 1,
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dealer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"so_current_serial_number": gorm.Expr("so_current_serial_number + ?", 1),
		}),
	}).Create(&row).Error; err != nil {
		return 0, err
	}

	var serial int64
	if err := tx.WithContext(ctx).Model(&DocSerialNumber{}).
		Where("dealer_id = ?", dealerId).
		Select("so_current_serial_number").Scan(&serial).Error; err != nil {
		return 0, err
	}
	return serial, nil
}
