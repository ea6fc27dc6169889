package models_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB opens a fresh in-memory database, installs it as the global
// DB and migrates the schema. Redis stays unset; the cache helpers are
// no-ops without it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// Shared-cache in-memory DBs disappear when the last conn closes.
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	config.SetDB(db)
	models.MigrateTable()
	return db
}

func dealerContext(dealerId string) context.Context {
	ctx := utils.SetDealerIdInContext(context.Background(), dealerId)
	ctx = utils.SetUidInContext(ctx, "test-uid")
	ctx = utils.SetUserIDNameInContext(ctx, "tester")
	return ctx
}

func seedDealer(t *testing.T, code string) (*models.Dealer, context.Context) {
	t.Helper()
	dealer, err := models.CreateDealer(context.Background(), models.NewDealer{
		DealerCode: code,
		Name:       code + " Trading",
	})
	if err != nil {
		t.Fatalf("CreateDealer: %v", err)
	}
	return dealer, dealerContext(dealer.ID)
}

type seededCatalog struct {
	Item     *models.Item
	Packages []*models.ItemPackage
	Lots     []*models.ItemStockPrice
}

// seedCatalog creates one item with the given packages and one lot per
// package at the given selling price. Stock starts at the given qty.
func seedCatalog(t *testing.T, ctx context.Context, itemName string, packageCount int, stockQty int64) seededCatalog {
	t.Helper()

	item, err := models.CreateItem(ctx, models.NewItem{
		ItemName:     itemName,
		Category:     "Beverages",
		Manufacturer: "Acme",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	out := seededCatalog{Item: item}
	for i := 0; i < packageCount; i++ {
		pkg, err := models.CreateItemPackage(ctx, models.NewItemPackage{
			ItemId:      item.ID,
			PackageSize: fmt.Sprintf("%d", (i+1)*12),
			PackageUnit: "btl",
		})
		if err != nil {
			t.Fatalf("CreateItemPackage: %v", err)
		}
		out.Packages = append(out.Packages, pkg)

		lots, err := models.UploadItemStockPrices(ctx, []models.NewItemStockPrice{
			{
				ItemPackageId: pkg.ID,
				Mrp:           decimal.NewFromInt(100),
				SellingPrice:  decimal.NewFromInt(90),
				StockQty:      decimal.NewFromInt(stockQty),
				AreaCode:      "A1",
			},
		})
		if err != nil {
			t.Fatalf("UploadItemStockPrices: %v", err)
		}
		if len(lots) != 1 {
			t.Fatalf("expected 1 lot, got %d", len(lots))
		}
		out.Lots = append(out.Lots, lots[0])
	}
	return out
}

func lotBalance(t *testing.T, db *gorm.DB, lotId string) decimal.Decimal {
	t.Helper()
	var lot models.ItemStockPrice
	if err := db.Where("id = ?", lotId).First(&lot).Error; err != nil {
		t.Fatalf("fetch lot %s: %v", lotId, err)
	}
	if lot.BalanceQty == nil {
		t.Fatalf("lot %s has nil balance", lotId)
	}
	return *lot.BalanceQty
}

func latestOutboxRecord(t *testing.T, db *gorm.DB, dealerId, refType, action string) *models.TriggerMessageRecord {
	t.Helper()
	var rec models.TriggerMessageRecord
	if err := db.Where("dealer_id = ? AND reference_type = ? AND action = ?", dealerId, refType, action).
		Order("id DESC").First(&rec).Error; err != nil {
		t.Fatalf("expected outbox record %s/%s: %v", refType, action, err)
	}
	return &rec
}

func countOutboxRecords(t *testing.T, db *gorm.DB, dealerId, refType, action string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.TriggerMessageRecord{}).
		Where("dealer_id = ? AND reference_type = ? AND action = ?", dealerId, refType, action).
		Count(&n).Error; err != nil {
		t.Fatalf("count outbox records: %v", err)
	}
	return n
}
