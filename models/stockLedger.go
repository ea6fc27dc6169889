package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InsufficientStockError rolls back the enclosing settlement
// transaction when a conditional decrement matches no row.
type InsufficientStockError struct {
	ItemStockPriceId string
	ItemName         string
	RequestedQty     decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (lot %s, requested %s)",
		e.ItemName, e.ItemStockPriceId, e.RequestedQty.String())
}

// ReceiptLine is one purchase-order line feeding the stock ledger.
type ReceiptLine struct {
	ItemPackageId string          `json:"itemPackageID" binding:"required"`
	Mrp           decimal.Decimal `json:"mrp"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	StockQty      decimal.Decimal `json:"stockQty" binding:"required"`
	AreaCode      string          `json:"areaCode"`
}

// ReceiveStock applies one purchase line to the ledger. Lots are
// deduplicated by the compound key (itemPackageID, mrp, sellingPrice):
// an existing lot gets an atomic balance increment, otherwise a new lot
// is created with balance equal to the received quantity.
func ReceiveStock(tx *gorm.DB, ctx context.Context, dealerId string, line ReceiptLine) error {
	var lotIds []string
	if err := tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("dealer_id = ? AND item_package_id = ? AND mrp = ? AND selling_price = ? AND is_deleted = ?",
			dealerId, line.ItemPackageId, line.Mrp, line.SellingPrice, false).
		Pluck("id", &lotIds).Error; err != nil {
		return err
	}

	if len(lotIds) == 0 {
		var pkg ItemPackage
		if err := tx.WithContext(ctx).
			Where("id = ? AND dealer_id = ?", line.ItemPackageId, dealerId).
			First(&pkg).Error; err != nil {
			return fmt.Errorf("item package not found: %s", line.ItemPackageId)
		}
		lot := newLotFromPackage(dealerId, &pkg, NewItemStockPrice{
			ItemPackageId: line.ItemPackageId,
			Mrp:           line.Mrp,
			SellingPrice:  line.SellingPrice,
			StockQty:      line.StockQty,
			AreaCode:      line.AreaCode,
			Tags:          []string{},
		})
		return tx.WithContext(ctx).Create(&lot).Error
	}

	// Every matched lot records the receipt; the balance tracks only
	// maintained lots.
	if err := tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("id IN ?", lotIds).
		Update("stock_qty", gorm.Expr("stock_qty + ?", line.StockQty)).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("id IN ? AND stock_maintained = ?", lotIds, true).
		Update("balance_qty", gorm.Expr("balance_qty + ?", line.StockQty)).Error
}

// DebitStock decrements a lot's balance for one sales line. The
// decrement is conditional on sufficient balance so two concurrent
// settlements cannot oversell; zero rows affected means the balance
// was too low and the caller must roll back.
func DebitStock(tx *gorm.DB, ctx context.Context, dealerId string, line SalesOrderItem) error {
	if !line.StockMaintained {
		return nil
	}

	query := tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("id = ? AND dealer_id = ? AND stock_maintained = ?", line.ItemStockPriceId, dealerId, true)
	if !config.AllowNegativeStock() {
		query = query.Where("balance_qty >= ?", line.Qty)
	}
	result := query.Update("balance_qty", gorm.Expr("balance_qty - ?", line.Qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &InsufficientStockError{
			ItemStockPriceId: line.ItemStockPriceId,
			ItemName:         line.ItemName,
			RequestedQty:     line.Qty,
		}
	}
	return nil
}

// CreditStock restores a lot's balance; used when a pending order is
// cancelled or deleted.
func CreditStock(tx *gorm.DB, ctx context.Context, dealerId string, line SalesOrderItem) error {
	if !line.StockMaintained {
		return nil
	}
	return tx.WithContext(ctx).Model(&ItemStockPrice{}).
		Where("id = ? AND dealer_id = ? AND stock_maintained = ?", line.ItemStockPriceId, dealerId, true).
		Update("balance_qty", gorm.Expr("balance_qty + ?", line.Qty)).Error
}
