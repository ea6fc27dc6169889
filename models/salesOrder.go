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
	"gorm.io/gorm"
)

// SalesOrderItem is one immutable line snapshot. The catalog values are
// frozen at settlement time; later catalog edits do not touch orders.
type SalesOrderItem struct {
	ItemStockPriceId string          `json:"itemStockPriceID"`
	ItemId           string          `json:"itemID"`
	ItemName         string          `json:"itemName"`
	ItemPackageId    string          `json:"itemPackageID"`
	PackageSize      string          `json:"packageSize"`
	PackageUnit      string          `json:"packageUnit"`
	Mrp              decimal.Decimal `json:"mrp"`
	SellingPrice     decimal.Decimal `json:"sellingPrice"`
	Qty              decimal.Decimal `json:"qty"`
	Amount           decimal.Decimal `json:"amount"`
	StockMaintained  bool            `json:"stockMaintained"`
}

type SalesOrderItemList []SalesOrderItem

func (l SalesOrderItemList) Value() (driver.Value, error) {
	if l == nil {
		l = SalesOrderItemList{}
	}
	return json.Marshal(l)
}

func (l *SalesOrderItemList) Scan(value interface{}) error {
	if value == nil {
		*l = SalesOrderItemList{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

// SalesOrder is the order header. SalesOrderNo stays NULL until the
// numbering workflow assigns it after commit; readers treat NULL as
// "processing".
type SalesOrder struct {
	ID                         string          `gorm:"primary_key;size:64" json:"salesOrderID"`
	DealerId                   string          `gorm:"size:64;not null;index" json:"dealerID"`
	SalesOrderNo               *string         `gorm:"size:30;index" json:"salesOrderNo"`
	OrderStatus                OrderStatus     `gorm:"size:20;not null;index" json:"orderStatus"`
	OrderDateTime              time.Time       `gorm:"not null;index" json:"orderDateTime"`
	CustomerExternalCode       string          `gorm:"size:64;index" json:"customerExternalCode"`
	CustomerName               string          `gorm:"size:255" json:"customerName"`
	AreaCode                   string          `gorm:"size:30;index" json:"areaCode"`
	UserIDName                 string          `gorm:"size:100" json:"userIDName"`
	TotalQty                   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalQty"`
	TotalAmount                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalAmount"`
	OrderStatusChangedDate     *time.Time      `json:"orderStatusChangedDate"`
	OrderStatusChangedByUserID string          `gorm:"size:100" json:"orderStatusChangedByUserID"`
	CancellationReason         string          `gorm:"size:500" json:"cancellationReason"`
	DataExported               bool            `gorm:"not null;default:0;index" json:"dataExported"`
	DataExportedDateTime       *time.Time      `json:"dataExportedDateTime"`
	DataExportedUserIDName     string          `gorm:"size:100" json:"dataExportedUserIDName"`
	CreatedAt                  time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                  time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// SalesOrderItems is the companion document holding the line snapshot
// array under the same id as the header.
type SalesOrderItems struct {
	ID        string             `gorm:"primary_key;size:64" json:"salesOrderID"`
	DealerId  string             `gorm:"size:64;not null;index" json:"dealerID"`
	Items     SalesOrderItemList `gorm:"type:json" json:"items"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"createdAt"`
}

type NewSalesOrderLine struct {
	ItemStockPriceId string          `json:"itemStockPriceID" binding:"required"`
	Qty              decimal.Decimal `json:"qty" binding:"required"`
}

type NewSalesOrder struct {
	ID                   string              `json:"salesOrderID" binding:"required"`
	CustomerExternalCode string              `json:"customerExternalCode"`
	CustomerName         string              `json:"customerName"`
	AreaCode             string              `json:"areaCode"`
	Lines                []NewSalesOrderLine `json:"lines" binding:"required"`
}

func buildOrderLines(tx *gorm.DB, ctx context.Context, dealerId string, lines []NewSalesOrderLine) (SalesOrderItemList, decimal.Decimal, decimal.Decimal, error) {
	items := make(SalesOrderItemList, 0, len(lines))
	totalQty := decimal.Zero
	totalAmount := decimal.Zero

	for _, line := range lines {
		if !line.Qty.IsPositive() {
			return nil, totalQty, totalAmount, errors.New("line qty must be positive")
		}
		var lot ItemStockPrice
		if err := tx.WithContext(ctx).
			Where("id = ? AND dealer_id = ? AND is_deleted = ?", line.ItemStockPriceId, dealerId, false).
			First(&lot).Error; err != nil {
			return nil, totalQty, totalAmount, errors.New("item stock price not found: " + line.ItemStockPriceId)
		}
		amount := lot.SellingPrice.Mul(line.Qty)
		items = append(items, SalesOrderItem{
			ItemStockPriceId: lot.ID,
			ItemId:           lot.ItemId,
			ItemName:         lot.ItemName,
			ItemPackageId:    lot.ItemPackageId,
			PackageSize:      lot.PackageSize,
			PackageUnit:      lot.PackageUnit,
			Mrp:              lot.Mrp,
			SellingPrice:     lot.SellingPrice,
			Qty:              line.Qty,
			Amount:           amount,
			StockMaintained:  lot.StockMaintained,
		})
		totalQty = totalQty.Add(line.Qty)
		totalAmount = totalAmount.Add(amount)
	}
	return items, totalQty, totalAmount, nil
}

// CreateSalesOrder settles an order in one transaction: header, line
// snapshot, stock debits, favorites merge and the outbox row that
// drives post-commit numbering. Any failure rolls everything back.
func CreateSalesOrder(ctx context.Context, input NewSalesOrder) (*SalesOrder, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("order must have at least one line")
	}
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&SalesOrder{}).Where("id = ?", input.ID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("sales order already exists")
	}

	userIDName, _ := utils.GetUserIDNameFromContext(ctx)
	if userIDName == "" {
		userIDName = "self"
	}

	tx := db.Begin()

	items, totalQty, totalAmount, err := buildOrderLines(tx, ctx, dealerId, input.Lines)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order := SalesOrder{
		ID:                   input.ID,
		DealerId:             dealerId,
		SalesOrderNo:         nil,
		OrderStatus:          OrderStatusPending,
		OrderDateTime:        time.Now().UTC(),
		CustomerExternalCode: input.CustomerExternalCode,
		CustomerName:         input.CustomerName,
		AreaCode:             input.AreaCode,
		UserIDName:           userIDName,
		TotalQty:             totalQty,
		TotalAmount:          totalAmount,
	}
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	itemsDoc := SalesOrderItems{
		ID:       order.ID,
		DealerId: dealerId,
		Items:    items,
	}
	if err := tx.WithContext(ctx).Create(&itemsDoc).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range items {
		if err := DebitStock(tx, ctx, dealerId, line); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	lotIds := make([]string, 0, len(items))
	for _, line := range items {
		lotIds = append(lotIds, line.ItemStockPriceId)
	}
	if err := MergeCustomerItemFavorites(tx, ctx, dealerId, input.CustomerExternalCode, lotIds); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishTriggerEvent(ctx, tx, dealerId, order.ID, ReferenceTypeSalesOrder, ActionCreate, nil, order); err != nil {
		tx.Rollback()
		return nil, err
	}

	return &order, tx.Commit().Error
}

func GetSalesOrder(ctx context.Context, id string) (*SalesOrder, *SalesOrderItems, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, nil, errors.New("dealer id is required")
	}
	order, err := utils.FetchModel[SalesOrder](ctx, dealerId, id)
	if err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	itemsDoc, err := utils.FetchModel[SalesOrderItems](ctx, dealerId, id)
	if err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return order, itemsDoc, nil
}

type UpdateSalesOrderStatusInput struct {
	Status OrderStatus `json:"orderStatus" binding:"required"`
	Reason string      `json:"reason"`
}

// UpdateSalesOrderStatus records the transition and, when cancelling a
// pending order, restores the debited stock in the same transaction.
// The outbox row it writes drives the status-change push notification.
func UpdateSalesOrderStatus(ctx context.Context, id string, input UpdateSalesOrderStatusInput) (*SalesOrder, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	if _, err := ParseOrderStatus(string(input.Status)); err != nil {
		return nil, err
	}
	db := config.GetDB()

	old, err := utils.FetchModel[SalesOrder](ctx, dealerId, id)
	if err != nil {
		return nil, errors.New("sales order not found")
	}

	userIDName, _ := utils.GetUserIDNameFromContext(ctx)
	now := time.Now().UTC()

	tx := db.Begin()
	updates := map[string]interface{}{
		"order_status":                    input.Status,
		"order_status_changed_date":       now,
		"order_status_changed_by_user_id": userIDName,
	}
	if input.Status == OrderStatusCancelled {
		updates["cancellation_reason"] = input.Reason
	}
	// Cancelled is terminal. The status condition lives in the statement
	// itself so two concurrent cancels cannot both pass a stale read and
	// credit the stock twice; the loser matches zero rows.
	result := tx.WithContext(ctx).Model(&SalesOrder{}).
		Where("id = ? AND dealer_id = ? AND order_status <> ?", id, dealerId, OrderStatusCancelled).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, errors.New("order is already cancelled")
	}

	if input.Status == OrderStatusCancelled {
		var itemsDoc SalesOrderItems
		if err := tx.WithContext(ctx).
			Where("id = ? AND dealer_id = ?", id, dealerId).
			First(&itemsDoc).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("sales order items not found")
		}
		for _, line := range itemsDoc.Items {
			if err := CreditStock(tx, ctx, dealerId, line); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	updated := *old
	updated.OrderStatus = input.Status
	updated.OrderStatusChangedDate = &now
	updated.OrderStatusChangedByUserID = userIDName
	if input.Status == OrderStatusCancelled {
		updated.CancellationReason = input.Reason
	}

	if err := PublishTriggerEvent(ctx, tx, dealerId, id, ReferenceTypeSalesOrderStatus, ActionUpdate, old, updated); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &updated, tx.Commit().Error
}

// DeleteSalesOrder removes a pending order and its line document
// atomically, restoring the debited stock first.
func DeleteSalesOrder(ctx context.Context, id string) (bool, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return false, errors.New("dealer id is required")
	}
	db := config.GetDB()

	order, err := utils.FetchModel[SalesOrder](ctx, dealerId, id)
	if err != nil {
		return false, errors.New("sales order not found")
	}

	tx := db.Begin()
	var itemsDoc SalesOrderItems
	if err := tx.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", id, dealerId).
		First(&itemsDoc).Error; err != nil {
		tx.Rollback()
		return false, errors.New("sales order items not found")
	}
	// The status condition is part of the delete so a concurrent status
	// change cannot slip in between a pre-check and the write; the stock
	// is credited only after the guarded delete matched the row.
	result := tx.WithContext(ctx).
		Where("id = ? AND dealer_id = ? AND order_status = ?", id, dealerId, OrderStatusPending).
		Delete(&SalesOrder{})
	if result.Error != nil {
		tx.Rollback()
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, errors.New("only pending orders can be deleted")
	}
	for _, line := range itemsDoc.Items {
		if err := CreditStock(tx, ctx, dealerId, line); err != nil {
			tx.Rollback()
			return false, err
		}
	}
	if err := tx.WithContext(ctx).
		Where("id = ? AND dealer_id = ?", id, dealerId).
		Delete(&SalesOrderItems{}).Error; err != nil {
		tx.Rollback()
		return false, err
	}
	if err := PublishTriggerEvent(ctx, tx, dealerId, id, ReferenceTypeSalesOrder, ActionDelete, order, nil); err != nil {
		tx.Rollback()
		return false, err
	}
	return true, tx.Commit().Error
}

// MarkSalesOrdersExported stamps the export metadata on the given
// orders after an external ERP pull.
func MarkSalesOrdersExported(ctx context.Context, ids []string) (int64, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return 0, errors.New("dealer id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	userIDName, _ := utils.GetUserIDNameFromContext(ctx)
	now := time.Now().UTC()

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&SalesOrder{}).
		Where("dealer_id = ? AND id IN ?", dealerId, ids).
		Updates(map[string]interface{}{
			"data_exported":              true,
			"data_exported_date_time":    now,
			"data_exported_user_id_name": userIDName,
		})
	return result.RowsAffected, result.Error
}

// DeleteAllSalesOrders is the tenant reset helper. It removes every
// order created before the cutoff together with its line documents.
func DeleteAllSalesOrders(ctx context.Context, before time.Time) (int64, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return 0, errors.New("dealer id is required")
	}
	db := config.GetDB()

	tx := db.Begin()
	var ids []string
	if err := tx.WithContext(ctx).Model(&SalesOrder{}).
		Where("dealer_id = ? AND created_at < ?", dealerId, before).
		Pluck("id", &ids).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	if len(ids) == 0 {
		tx.Rollback()
		return 0, nil
	}
	result := tx.WithContext(ctx).Where("dealer_id = ? AND id IN ?", dealerId, ids).Delete(&SalesOrder{})
	if result.Error != nil {
		tx.Rollback()
		return 0, result.Error
	}
	if err := tx.WithContext(ctx).Where("dealer_id = ? AND id IN ?", dealerId, ids).
		Delete(&SalesOrderItems{}).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	return result.RowsAffected, tx.Commit().Error
}

type SalesOrderFilter struct {
	Status       *OrderStatus
	ExportedOnly *bool
	From         *time.Time
	To           *time.Time
}

// GetSalesOrdersList applies role scoping: customers only see orders
// they placed, other roles are filtered by their allowed areas when the
// mapping carries any.
func GetSalesOrdersList(ctx context.Context, profile *UserProfile, filter SalesOrderFilter) ([]*SalesOrder, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	query := db.WithContext(ctx).Where("dealer_id = ?", dealerId)

	mapping := profile.MappingForDealer(dealerId)
	if mapping == nil {
		return nil, errors.New("not associated with dealer")
	}
	if mapping.Roles.Contains(RoleCustomer) && !HasCapability(profile, CapabilityViewAllOrders, dealerId) {
		query = query.Where("customer_external_code = ?", mapping.CustomerExternalCode)
	} else if len(mapping.AllowedAreas) > 0 {
		query = query.Where("area_code IN ?", []string(mapping.AllowedAreas))
	}

	if filter.Status != nil {
		query = query.Where("order_status = ?", *filter.Status)
	}
	if filter.ExportedOnly != nil {
		query = query.Where("data_exported = ?", *filter.ExportedOnly)
	}
	if filter.From != nil {
		query = query.Where("order_date_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("order_date_time < ?", *filter.To)
	}

	var orders []*SalesOrder
	if err := query.Order("order_date_time DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// AssignSalesOrderNo merge-writes the allocated number onto the header.
func AssignSalesOrderNo(tx *gorm.DB, ctx context.Context, dealerId string, orderId string, serial int64) error {
	salesOrderNo := utils.FormatSalesOrderNo(serial)
	return tx.WithContext(ctx).Model(&SalesOrder{}).
		Where("id = ? AND dealer_id = ?", orderId, dealerId).
		Update("sales_order_no", salesOrderNo).Error
}
