package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type triggerWorkflowFunc func(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error

func runTriggerWorkflow(t *testing.T, db *gorm.DB, rec *models.TriggerMessageRecord, fn triggerWorkflowFunc) {
	t.Helper()
	tx := db.Begin()
	if err := fn(tx, logrus.New(), models.ConvertToPubSubMessage(*rec)); err != nil {
		tx.Rollback()
		t.Fatalf("workflow failed: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("workflow commit: %v", err)
	}
}

func TestItemUpdateFansOutToPackagesAndLots(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "REPL1")
	cat := seedCatalog(t, ctx, "Cola", 2, 100)

	before, err := models.TrackVersionOfStaticData(ctx)
	if err != nil {
		t.Fatalf("TrackVersionOfStaticData: %v", err)
	}

	newCategory := "Snacks"
	newManufacturer := "Globex"
	if _, err := models.ModifyItem(ctx, cat.Item.ID, models.ModifyItemInput{
		Category:     &newCategory,
		Manufacturer: &newManufacturer,
	}); err != nil {
		t.Fatalf("ModifyItem: %v", err)
	}

	rec := latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeItem, models.ActionUpdate)
	runTriggerWorkflow(t, db, rec, workflow.ProcessItemReplicationWorkflow)

	var packages []models.ItemPackage
	if err := db.Where("dealer_id = ? AND item_id = ?", dealer.ID, cat.Item.ID).Find(&packages).Error; err != nil {
		t.Fatalf("fetch packages: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(packages))
	}
	for _, pkg := range packages {
		if pkg.Category != newCategory || pkg.Manufacturer != newManufacturer {
			t.Fatalf("package %s not replicated: category=%q manufacturer=%q", pkg.ID, pkg.Category, pkg.Manufacturer)
		}
	}

	var lots []models.ItemStockPrice
	if err := db.Where("dealer_id = ? AND item_id = ?", dealer.ID, cat.Item.ID).Find(&lots).Error; err != nil {
		t.Fatalf("fetch lots: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(lots))
	}
	for _, lot := range lots {
		if lot.Category != newCategory || lot.Manufacturer != newManufacturer {
			t.Fatalf("lot %s not replicated: category=%q manufacturer=%q", lot.ID, lot.Category, lot.Manufacturer)
		}
	}

	var reloaded models.TriggerMessageRecord
	if err := db.Where("id = ?", rec.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload outbox record: %v", err)
	}
	if !reloaded.IsProcessed {
		t.Fatal("outbox record should be marked processed")
	}

	after, err := models.TrackVersionOfStaticData(ctx)
	if err != nil {
		t.Fatalf("TrackVersionOfStaticData: %v", err)
	}
	if after.VerItemStockPrice != before.VerItemStockPrice+1 {
		t.Fatalf("item version should bump once, got %d -> %d", before.VerItemStockPrice, after.VerItemStockPrice)
	}
}

func TestItemReplicationRerunIsSafe(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "REPL2")
	cat := seedCatalog(t, ctx, "Chips", 1, 50)

	newDescription := "crispy"
	if _, err := models.ModifyItem(ctx, cat.Item.ID, models.ModifyItemInput{
		ItemDescription: &newDescription,
	}); err != nil {
		t.Fatalf("ModifyItem: %v", err)
	}

	rec := latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeItem, models.ActionUpdate)
	runTriggerWorkflow(t, db, rec, workflow.ProcessItemReplicationWorkflow)
	// Redelivery of the same message merges the same values again.
	runTriggerWorkflow(t, db, rec, workflow.ProcessItemReplicationWorkflow)

	var lot models.ItemStockPrice
	if err := db.Where("id = ?", cat.Lots[0].ID).First(&lot).Error; err != nil {
		t.Fatalf("fetch lot: %v", err)
	}
	if lot.ItemDescription != newDescription {
		t.Fatalf("lot description = %q, want %q", lot.ItemDescription, newDescription)
	}
}

func TestUntrackedItemChangeWritesNoOutboxRow(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "REPL3")
	cat := seedCatalog(t, ctx, "Soda", 1, 10)

	updates := countOutboxRecords(t, db, dealer.ID, models.ReferenceTypeItem, models.ActionUpdate)

	// The item name lives on the item document only; renaming must not
	// trigger replication.
	newName := "Soda Zero"
	item, err := models.ModifyItem(ctx, cat.Item.ID, models.ModifyItemInput{ItemName: &newName})
	if err != nil {
		t.Fatalf("ModifyItem: %v", err)
	}
	if item.ItemName != newName {
		t.Fatalf("item name = %q, want %q", item.ItemName, newName)
	}

	if got := countOutboxRecords(t, db, dealer.ID, models.ReferenceTypeItem, models.ActionUpdate); got != updates {
		t.Fatalf("rename wrote an outbox row: %d -> %d", updates, got)
	}
}

func TestDeleteItemCascadesThroughReplication(t *testing.T) {
	db := newTestDB(t)
	dealer, ctx := seedDealer(t, "REPL4")
	cat := seedCatalog(t, ctx, "Water", 1, 10)

	if _, err := models.DeleteItem(ctx, cat.Item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	// The CRUD cascades to packages synchronously.
	var pkg models.ItemPackage
	if err := db.Where("id = ?", cat.Packages[0].ID).First(&pkg).Error; err != nil {
		t.Fatalf("fetch package: %v", err)
	}
	if !pkg.IsDeleted || pkg.IsActive {
		t.Fatal("package should be soft deleted with the item")
	}

	// Lots follow via the replication workflow.
	rec := latestOutboxRecord(t, db, dealer.ID, models.ReferenceTypeItem, models.ActionUpdate)
	runTriggerWorkflow(t, db, rec, workflow.ProcessItemReplicationWorkflow)

	var lot models.ItemStockPrice
	if err := db.Where("id = ?", cat.Lots[0].ID).First(&lot).Error; err != nil {
		t.Fatalf("fetch lot: %v", err)
	}
	if !lot.IsDeleted {
		t.Fatal("lot should be soft deleted after replication")
	}

	if _, err := models.GetItem(ctx, cat.Item.ID); err != nil {
		t.Fatalf("soft-deleted item should still be fetchable by id: %v", err)
	}
	items, err := models.GetItemsList(ctx)
	if err != nil {
		t.Fatalf("GetItemsList: %v", err)
	}
	for _, it := range items {
		if it.ID == cat.Item.ID {
			t.Fatal("soft-deleted item should not appear in the list")
		}
	}
}
