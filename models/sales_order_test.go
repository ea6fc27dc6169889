package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"bitbucket.org/mmdatafocus/dealer_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestCreateSalesOrderSettlement(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "ORD1")
	cat := seedCatalog(t, ctx, "Cola", 1, 100)
	lot := cat.Lots[0]

	orderId := utils.NewDocumentId()
	order, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID:           orderId,
		CustomerName: "Walk-in",
		AreaCode:     "A1",
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(30)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	if order.OrderStatus != models.OrderStatusPending {
		t.Fatalf("order status = %s, want pending", order.OrderStatus)
	}
	if order.SalesOrderNo != nil {
		t.Fatalf("sales order no should stay unassigned at settlement, got %q", *order.SalesOrderNo)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(2700)) {
		t.Fatalf("total amount = %s, want 2700", order.TotalAmount)
	}

	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance = %s, want 70", got)
	}

	_, itemsDoc, err := models.GetSalesOrder(ctx, orderId)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if len(itemsDoc.Items) != 1 || !itemsDoc.Items[0].Qty.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("line snapshot missing or wrong: %+v", itemsDoc.Items)
	}

	latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeSalesOrder, models.ActionCreate)

	// A customer without an external code files favorites under the
	// dealer's own key.
	favorites, err := models.GetFavoriteItemStockPriceReferences(ctx, "")
	if err != nil {
		t.Fatalf("GetFavoriteItemStockPriceReferences: %v", err)
	}
	if len(favorites) != 1 || favorites[0] != lot.ID {
		t.Fatalf("favorites = %v, want [%s]", favorites, lot.ID)
	}

	// The client-supplied id is the retry key.
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: orderId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(1)},
		},
	}); err == nil {
		t.Fatal("duplicate order id must be rejected")
	}
}

func TestOversellRollsBackEntireSettlement(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "ORD2")
	cat := seedCatalog(t, ctx, "Chips", 1, 10)
	lot := cat.Lots[0]

	orderId := utils.NewDocumentId()
	_, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: orderId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(50)},
		},
	})
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("failed settlement must not move stock, balance = %s", got)
	}
	var count int64
	if err := db.Model(&models.SalesOrder{}).Where("id = ?", orderId).Count(&count).Error; err != nil {
		t.Fatalf("count headers: %v", err)
	}
	if count != 0 {
		t.Fatal("failed settlement must not leave a header behind")
	}
	if got := countOutboxRecords(t, db, dealer.ID, models.ReferenceTypeSalesOrder, models.ActionCreate); got != 0 {
		t.Fatalf("failed settlement must not write an outbox row, got %d", got)
	}
}

func TestNumberingWorkflowAssignsSequentialNumbers(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "ORD3")
	cat := seedCatalog(t, ctx, "Water", 1, 100)

	firstId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: firstId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: cat.Lots[0].ID, Qty: decimal.NewFromInt(1)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	rec := latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeSalesOrder, models.ActionCreate)
	runTriggerWorkflow(t, db, rec, workflow.ProcessSalesOrderNumberingWorkflow)

	first, _, err := models.GetSalesOrder(ctx, firstId)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if first.SalesOrderNo == nil || *first.SalesOrderNo != "SO-000001" {
		t.Fatalf("first order no = %v, want SO-000001", first.SalesOrderNo)
	}

	// Redelivery must not burn a second serial.
	runTriggerWorkflow(t, db, rec, workflow.ProcessSalesOrderNumberingWorkflow)
	first, _, err = models.GetSalesOrder(ctx, firstId)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if first.SalesOrderNo == nil || *first.SalesOrderNo != "SO-000001" {
		t.Fatalf("redelivery changed the order no to %v", first.SalesOrderNo)
	}

	secondId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: secondId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: cat.Lots[0].ID, Qty: decimal.NewFromInt(1)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	rec = latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeSalesOrder, models.ActionCreate)
	runTriggerWorkflow(t, db, rec, workflow.ProcessSalesOrderNumberingWorkflow)

	second, _, err := models.GetSalesOrder(ctx, secondId)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if second.SalesOrderNo == nil || *second.SalesOrderNo != "SO-000002" {
		t.Fatalf("second order no = %v, want SO-000002", second.SalesOrderNo)
	}
}

func TestCancelRestoresStockAndEmitsStatusEvent(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "ORD4")
	cat := seedCatalog(t, ctx, "Soda", 1, 100)
	lot := cat.Lots[0]

	orderId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: orderId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(40)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("balance after settlement = %s, want 60", got)
	}

	updated, err := models.UpdateSalesOrderStatus(ctx, orderId, models.UpdateSalesOrderStatusInput{
		Status: models.OrderStatusCancelled,
		Reason: "customer changed mind",
	})
	if err != nil {
		t.Fatalf("UpdateSalesOrderStatus: %v", err)
	}
	if updated.OrderStatus != models.OrderStatusCancelled || updated.CancellationReason == "" {
		t.Fatalf("cancel not recorded: %+v", updated)
	}

	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("cancel must restore the balance, got %s", got)
	}
	latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeSalesOrderStatus, models.ActionUpdate)

	if _, err := models.UpdateSalesOrderStatus(ctx, orderId, models.UpdateSalesOrderStatusInput{
		Status: models.OrderStatusConfirmed,
	}); err == nil {
		t.Fatal("a cancelled order must not transition again")
	}
}

func TestDeleteSalesOrderPendingOnly(t *testing.T) {
	db := newTestDB(t)
	_, ctx := seedDealer(t, "ORD5")
	cat := seedCatalog(t, ctx, "Juice", 1, 100)
	lot := cat.Lots[0]

	orderId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: orderId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(15)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	ok, err := models.DeleteSalesOrder(ctx, orderId)
	if err != nil || !ok {
		t.Fatalf("DeleteSalesOrder: ok=%v err=%v", ok, err)
	}
	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("delete must restore the balance, got %s", got)
	}
	if _, _, err := models.GetSalesOrder(ctx, orderId); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("deleted order should be gone, got %v", err)
	}

	// Non-pending orders are immutable history.
	secondId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: secondId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(5)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if _, err := models.UpdateSalesOrderStatus(ctx, secondId, models.UpdateSalesOrderStatusInput{
		Status: models.OrderStatusConfirmed,
	}); err != nil {
		t.Fatalf("UpdateSalesOrderStatus: %v", err)
	}
	if _, err := models.DeleteSalesOrder(ctx, secondId); err == nil {
		t.Fatal("confirmed order must not be deletable")
	}
}

func TestSalesOrderListScoping(t *testing.T) {
	newTestDB(t)
	dealer, ctx := seedDealer(t, "ORD6")
	cat := seedCatalog(t, ctx, "Milk", 1, 100)

	for _, code := range []string{"CUST1", "CUST2"} {
		if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
			ID:                   utils.NewDocumentId(),
			CustomerExternalCode: code,
			Lines: []models.NewSalesOrderLine{
				{ItemStockPriceId: cat.Lots[0].ID, Qty: decimal.NewFromInt(1)},
			},
		}); err != nil {
			t.Fatalf("CreateSalesOrder(%s): %v", code, err)
		}
	}

	manager := profileWith(models.DealerUserMapping{
		DealerId: strPtr(dealer.ID),
		Roles:    models.RoleSet{models.RoleManager},
	})
	all, err := models.GetSalesOrdersList(ctx, manager, models.SalesOrderFilter{})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(manager): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("manager should see 2 orders, got %d", len(all))
	}

	customer := profileWith(models.DealerUserMapping{
		DealerId:             strPtr(dealer.ID),
		Roles:                models.RoleSet{models.RoleCustomer},
		CustomerExternalCode: "CUST1",
	})
	own, err := models.GetSalesOrdersList(ctx, customer, models.SalesOrderFilter{})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(customer): %v", err)
	}
	if len(own) != 1 || own[0].CustomerExternalCode != "CUST1" {
		t.Fatalf("customer should only see own orders, got %+v", own)
	}

	exported := true
	none, err := models.GetSalesOrdersList(ctx, manager, models.SalesOrderFilter{ExportedOnly: &exported})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(exported): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("no orders are exported yet, got %d", len(none))
	}

	ids := []string{all[0].ID}
	n, err := models.MarkSalesOrdersExported(ctx, ids)
	if err != nil || n != 1 {
		t.Fatalf("MarkSalesOrdersExported: n=%d err=%v", n, err)
	}
	one, err := models.GetSalesOrdersList(ctx, manager, models.SalesOrderFilter{ExportedOnly: &exported})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(exported): %v", err)
	}
	if len(one) != 1 || !one[0].DataExported {
		t.Fatalf("expected exactly the exported order, got %+v", one)
	}
}

func TestCancelTwiceCreditsStockOnce(t *testing.T) {
	db := newTestDB(t)
	_, ctx := seedDealer(t, "ORD7")
	cat := seedCatalog(t, ctx, "Tea", 1, 100)
	lot := cat.Lots[0]

	orderId := utils.NewDocumentId()
	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID: orderId,
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: lot.ID, Qty: decimal.NewFromInt(30)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	cancel := models.UpdateSalesOrderStatusInput{
		Status: models.OrderStatusCancelled,
		Reason: "customer changed mind",
	}
	if _, err := models.UpdateSalesOrderStatus(ctx, orderId, cancel); err != nil {
		t.Fatalf("UpdateSalesOrderStatus: %v", err)
	}
	if _, err := models.UpdateSalesOrderStatus(ctx, orderId, cancel); err == nil {
		t.Fatal("second cancel must match zero rows and be rejected")
	}
	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("stock must be credited exactly once, balance = %s", got)
	}
}

func TestAllowedAreasScopeOrdersAndCustomers(t *testing.T) {
	newTestDB(t)
	dealer, ctx := seedDealer(t, "AREA1")
	cat := seedCatalog(t, ctx, "Water", 1, 50)

	if _, err := models.CreateSalesOrder(ctx, models.NewSalesOrder{
		ID:                   utils.NewDocumentId(),
		CustomerExternalCode: "CUST1",
		AreaCode:             "110001",
		Lines: []models.NewSalesOrderLine{
			{ItemStockPriceId: cat.Lots[0].ID, Qty: decimal.NewFromInt(1)},
		},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if _, err := models.CreateCustomer(ctx, models.NewCustomer{
		ExternalCode: "CUST1",
		Name:         "Area One Stores",
		AreaCode:     "110001",
	}); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	outside := profileWith(models.DealerUserMapping{
		DealerId:     strPtr(dealer.ID),
		Roles:        models.RoleSet{models.RoleSalesperson},
		AllowedAreas: models.StringSlice{"220002"},
	})
	orders, err := models.GetSalesOrdersList(ctx, outside, models.SalesOrderFilter{})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(outside): %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("salesperson limited to 220002 must not see 110001 orders, got %d", len(orders))
	}
	customers, err := models.GetCustomersList(ctx, outside)
	if err != nil {
		t.Fatalf("GetCustomersList(outside): %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("salesperson limited to 220002 must not see 110001 customers, got %d", len(customers))
	}

	inside := profileWith(models.DealerUserMapping{
		DealerId:     strPtr(dealer.ID),
		Roles:        models.RoleSet{models.RoleSalesperson},
		AllowedAreas: models.StringSlice{"110001", "220002"},
	})
	orders, err = models.GetSalesOrdersList(ctx, inside, models.SalesOrderFilter{})
	if err != nil {
		t.Fatalf("GetSalesOrdersList(inside): %v", err)
	}
	if len(orders) != 1 || orders[0].AreaCode != "110001" {
		t.Fatalf("salesperson allowed in 110001 should see the order, got %+v", orders)
	}
	customers, err = models.GetCustomersList(ctx, inside)
	if err != nil {
		t.Fatalf("GetCustomersList(inside): %v", err)
	}
	if len(customers) != 1 || customers[0].ExternalCode != "CUST1" {
		t.Fatalf("salesperson allowed in 110001 should see the customer, got %+v", customers)
	}
}
