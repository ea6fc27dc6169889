package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchaseOrderLine struct {
	ItemPackageId string          `json:"itemPackageID"`
	ItemId        string          `json:"itemID"`
	ItemName      string          `json:"itemName"`
	PackageSize   string          `json:"packageSize"`
	PackageUnit   string          `json:"packageUnit"`
	Mrp           decimal.Decimal `json:"mrp"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	StockQty      decimal.Decimal `json:"stockQty"`
}

type PurchaseOrderLineList []PurchaseOrderLine

func (l PurchaseOrderLineList) Value() (driver.Value, error) {
	if l == nil {
		l = PurchaseOrderLineList{}
	}
	return json.Marshal(l)
}

func (l *PurchaseOrderLineList) Scan(value interface{}) error {
	if value == nil {
		*l = PurchaseOrderLineList{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

// PurchaseOrder records a stock receipt. The receipt is applied to the
// ledger synchronously inside the creation transaction, so the order
// and its stock effect commit or roll back together.
type PurchaseOrder struct {
	ID            string                `gorm:"primary_key;size:64" json:"purchaseOrderID"`
	DealerId      string                `gorm:"size:64;not null;index" json:"dealerID"`
	SupplierName  string                `gorm:"size:255" json:"supplierName"`
	OrderDateTime time.Time             `gorm:"not null;index" json:"orderDateTime"`
	UserIDName    string                `gorm:"size:100" json:"userIDName"`
	TotalQty      decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"totalQty"`
	Lines         PurchaseOrderLineList `gorm:"type:json" json:"lines"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewPurchaseOrder struct {
	SupplierName string        `json:"supplierName"`
	Lines        []ReceiptLine `json:"lines" binding:"required"`
}

func CreatePurchaseOrder(ctx context.Context, input NewPurchaseOrder) (*PurchaseOrder, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("purchase order must have at least one line")
	}
	db := config.GetDB()

	userIDName, _ := utils.GetUserIDNameFromContext(ctx)

	tx := db.Begin()

	lines := make(PurchaseOrderLineList, 0, len(input.Lines))
	totalQty := decimal.Zero
	for _, line := range input.Lines {
		if !line.StockQty.IsPositive() {
			tx.Rollback()
			return nil, errors.New("line qty must be positive")
		}
		var pkg ItemPackage
		if err := tx.WithContext(ctx).
			Where("id = ? AND dealer_id = ?", line.ItemPackageId, dealerId).
			First(&pkg).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("item package not found: " + line.ItemPackageId)
		}
		lines = append(lines, PurchaseOrderLine{
			ItemPackageId: pkg.ID,
			ItemId:        pkg.ItemId,
			ItemName:      pkg.ItemName,
			PackageSize:   pkg.PackageSize,
			PackageUnit:   pkg.PackageUnit,
			Mrp:           line.Mrp,
			SellingPrice:  line.SellingPrice,
			StockQty:      line.StockQty,
		})
		totalQty = totalQty.Add(line.StockQty)

		if err := ReceiveStock(tx, ctx, dealerId, line); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	order := PurchaseOrder{
		ID:            utils.NewDocumentId(),
		DealerId:      dealerId,
		SupplierName:  input.SupplierName,
		OrderDateTime: time.Now().UTC(),
		UserIDName:    userIDName,
		TotalQty:      totalQty,
		Lines:         lines,
	}
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishTriggerEvent(ctx, tx, dealerId, order.ID, ReferenceTypePurchaseOrder, ActionCreate, nil, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// stock balances changed, let clients refetch
	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataItems); err != nil {
		return &order, err
	}
	return &order, nil
}

func GetPurchaseOrdersList(ctx context.Context) ([]*PurchaseOrder, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()
	var orders []*PurchaseOrder
	if err := db.WithContext(ctx).Where("dealer_id = ?", dealerId).
		Order("order_date_time DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
