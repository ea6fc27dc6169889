package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

func TestPurchaseOrderCreatesAndTopsUpLots(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "STK1")
	cat := seedCatalog(t, ctx, "Cola", 1, 100)
	pkg := cat.Packages[0]

	// Same compound key (package, mrp, selling price) tops up the
	// existing lot instead of creating a second one.
	if _, err := models.CreatePurchaseOrder(ctx, models.NewPurchaseOrder{
		SupplierName: "Acme Wholesale",
		Lines: []models.ReceiptLine{
			{
				ItemPackageId: pkg.ID,
				Mrp:           decimal.NewFromInt(100),
				SellingPrice:  decimal.NewFromInt(90),
				StockQty:      decimal.NewFromInt(40),
				AreaCode:      "A1",
			},
		},
	}); err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	var lots []models.ItemStockPrice
	if err := db.Where("dealer_id = ? AND item_package_id = ?", dealer.ID, pkg.ID).Find(&lots).Error; err != nil {
		t.Fatalf("fetch lots: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot after top-up, got %d", len(lots))
	}
	if got := lotBalance(t, db, cat.Lots[0].ID); !got.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("balance = %s, want 140", got)
	}

	// A different selling price opens a new lot with balance = qty.
	if _, err := models.CreatePurchaseOrder(ctx, models.NewPurchaseOrder{
		SupplierName: "Acme Wholesale",
		Lines: []models.ReceiptLine{
			{
				ItemPackageId: pkg.ID,
				Mrp:           decimal.NewFromInt(100),
				SellingPrice:  decimal.NewFromInt(85),
				StockQty:      decimal.NewFromInt(25),
				AreaCode:      "A1",
			},
		},
	}); err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if err := db.Where("dealer_id = ? AND item_package_id = ?", dealer.ID, pkg.ID).Find(&lots).Error; err != nil {
		t.Fatalf("fetch lots: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots after price change, got %d", len(lots))
	}
	for _, lot := range lots {
		if lot.ID == cat.Lots[0].ID {
			continue
		}
		if lot.BalanceQty == nil || !lot.BalanceQty.Equal(decimal.NewFromInt(25)) {
			t.Fatalf("new lot balance = %v, want 25", lot.BalanceQty)
		}
		if !lot.StockQty.Equal(decimal.NewFromInt(25)) {
			t.Fatalf("new lot stock = %s, want 25", lot.StockQty)
		}
	}
}

func TestPurchaseOrderRejectsUnknownPackageAndBadQty(t *testing.T) {
	newTestDB(t)
	_, ctx := seedDealer(t, "STK2")

	if _, err := models.CreatePurchaseOrder(ctx, models.NewPurchaseOrder{
		Lines: []models.ReceiptLine{
			{ItemPackageId: "missing", StockQty: decimal.NewFromInt(10)},
		},
	}); err == nil {
		t.Fatal("unknown package should fail the receipt")
	}

	cat := seedCatalog(t, ctx, "Chips", 1, 10)
	if _, err := models.CreatePurchaseOrder(ctx, models.NewPurchaseOrder{
		Lines: []models.ReceiptLine{
			{ItemPackageId: cat.Packages[0].ID, StockQty: decimal.NewFromInt(-5)},
		},
	}); err == nil {
		t.Fatal("non-positive qty should fail the receipt")
	}
}

func TestDebitStockConditionalDecrement(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "STK3")
	cat := seedCatalog(t, ctx, "Water", 1, 100)
	lot := cat.Lots[0]

	line := models.SalesOrderItem{
		ItemStockPriceId: lot.ID,
		ItemName:         "Water",
		Qty:              decimal.NewFromInt(30),
		StockMaintained:  true,
	}

	tx := db.Begin()
	if err := models.DebitStock(tx, ctx, dealer.ID, line); err != nil {
		tx.Rollback()
		t.Fatalf("DebitStock: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance = %s, want 70", got)
	}

	// Debiting more than the remaining balance matches no row and
	// surfaces as a typed error.
	over := line
	over.Qty = decimal.NewFromInt(200)
	tx = db.Begin()
	err := models.DebitStock(tx, ctx, dealer.ID, over)
	tx.Rollback()
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ItemStockPriceId != lot.ID {
		t.Fatalf("error names lot %s, want %s", insufficient.ItemStockPriceId, lot.ID)
	}
	if got := lotBalance(t, db, lot.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("failed debit must not change the balance, got %s", got)
	}
}

func TestDebitAndCreditSkipUnmaintainedLines(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "STK4")
	cat := seedCatalog(t, ctx, "Service Fee", 1, 10)

	line := models.SalesOrderItem{
		ItemStockPriceId: cat.Lots[0].ID,
		Qty:              decimal.NewFromInt(5),
		StockMaintained:  false,
	}

	tx := db.Begin()
	if err := models.DebitStock(tx, ctx, dealer.ID, line); err != nil {
		tx.Rollback()
		t.Fatalf("DebitStock on unmaintained line: %v", err)
	}
	if err := models.CreditStock(tx, ctx, dealer.ID, line); err != nil {
		tx.Rollback()
		t.Fatalf("CreditStock on unmaintained line: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := lotBalance(t, db, cat.Lots[0].ID); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unmaintained line must not touch the ledger, balance = %s", got)
	}
}

func TestCreditStockRestoresBalance(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "STK5")
	cat := seedCatalog(t, ctx, "Soda", 1, 50)

	line := models.SalesOrderItem{
		ItemStockPriceId: cat.Lots[0].ID,
		Qty:              decimal.NewFromInt(20),
		StockMaintained:  true,
	}

	tx := db.Begin()
	if err := models.DebitStock(tx, ctx, dealer.ID, line); err != nil {
		tx.Rollback()
		t.Fatalf("DebitStock: %v", err)
	}
	if err := models.CreditStock(tx, ctx, dealer.ID, line); err != nil {
		tx.Rollback()
		t.Fatalf("CreditStock: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := lotBalance(t, db, cat.Lots[0].ID); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want 50", got)
	}
}

func TestPurchaseOrderTopsUpUnmaintainedLots(t *testing.T) {
	db := newTestDB(t)
	_, ctx := seedDealer(t, "STK6")

	item, err := models.CreateItem(ctx, models.NewItem{
		ItemName:        "Delivery Charge",
		StockMaintained: utils.NewFalse(),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	pkg, err := models.CreateItemPackage(ctx, models.NewItemPackage{
		ItemId:      item.ID,
		PackageSize: "1",
		PackageUnit: "job",
	})
	if err != nil {
		t.Fatalf("CreateItemPackage: %v", err)
	}

	line := models.ReceiptLine{
		ItemPackageId: pkg.ID,
		Mrp:           decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(90),
		StockQty:      decimal.NewFromInt(25),
	}
	for i := 0; i < 2; i++ {
		if _, err := models.CreatePurchaseOrder(ctx, models.NewPurchaseOrder{
			SupplierName: "Acme Distribution",
			Lines:        []models.ReceiptLine{line},
		}); err != nil {
			t.Fatalf("CreatePurchaseOrder #%d: %v", i+1, err)
		}
	}

	var lots []models.ItemStockPrice
	if err := db.Where("item_package_id = ?", pkg.ID).Find(&lots).Error; err != nil {
		t.Fatalf("load lots: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	if !lots[0].StockQty.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("second receipt must top up stock_qty, got %s", lots[0].StockQty)
	}
	if lots[0].BalanceQty != nil {
		t.Fatalf("unmaintained lot must not carry a balance, got %s", lots[0].BalanceQty)
	}
}

func TestReceiveStockReadsThroughItsOwnTransaction(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "STK7")
	cat := seedCatalog(t, ctx, "Juice", 1, 10)

	tx := db.Begin()
	pkg := models.ItemPackage{
		ID:              utils.NewDocumentId(),
		DealerId:        dealer.ID,
		ItemId:          cat.Item.ID,
		ItemName:        cat.Item.ItemName,
		StockMaintained: true,
		IsActive:        true,
		PackageSize:     "6",
		PackageUnit:     "can",
	}
	if err := tx.Create(&pkg).Error; err != nil {
		tx.Rollback()
		t.Fatalf("create package: %v", err)
	}
	if err := models.ReceiveStock(tx, ctx, dealer.ID, models.ReceiptLine{
		ItemPackageId: pkg.ID,
		Mrp:           decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(90),
		StockQty:      decimal.NewFromInt(10),
	}); err != nil {
		tx.Rollback()
		t.Fatalf("ReceiveStock must see rows created in its own transaction: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit: %v", err)
	}

	var lot models.ItemStockPrice
	if err := db.Where("item_package_id = ?", pkg.ID).First(&lot).Error; err != nil {
		t.Fatalf("load lot: %v", err)
	}
	if lot.BalanceQty == nil || !lot.BalanceQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("new lot balance should equal the received qty, got %v", lot.BalanceQty)
	}
}
