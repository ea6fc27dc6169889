// dealer-reset wipes a dealer's transactional data (orders, stock lots,
// outbox, serials) while leaving the catalog and users in place. Meant
// for staging dealers and onboarding do-overs.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"gorm.io/gorm"
)

func main() {
	dealerID := flag.String("dealer-id", "", "Required: dealer id (uuid)")
	dryRun := flag.Bool("dry-run", true, "Show counts only (no writes)")
	confirm := flag.String("confirm", "", "Type RESET to proceed when dry-run=false")
	resetStock := flag.Bool("reset-stock", true, "Delete stock lots")
	resetOutbox := flag.Bool("reset-outbox", true, "Delete trigger message records")
	flag.Parse()

	if strings.TrimSpace(*dealerID) == "" {
		fmt.Fprintln(os.Stderr, "--dealer-id is required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "RESET" {
		fmt.Fprintln(os.Stderr, "set --confirm=RESET to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var dealer models.Dealer
	if err := db.Where("id = ?", *dealerID).First(&dealer).Error; err != nil {
		fmt.Fprintf(os.Stderr, "dealer not found: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		printCounts(db, *dealerID)
		return
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.SalesOrderItems{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.SalesOrder{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.PurchaseOrder{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.CustomerItemFavorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.DocSerialNumber{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.IdempotencyKey{}).Error; err != nil {
			return err
		}

		if *resetStock {
			if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.ItemStockPrice{}).Error; err != nil {
				return err
			}
		}
		if *resetOutbox {
			if err := tx.Where("dealer_id = ?", *dealerID).Delete(&models.TriggerMessageRecord{}).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reset complete for dealer %s (%s)\n", dealer.DealerCode, *dealerID)
}

func printCounts(db *gorm.DB, dealerID string) {
	count := func(model interface{}, label string) {
		var n int64
		if err := db.Model(model).Where("dealer_id = ?", dealerID).Count(&n).Error; err != nil {
			fmt.Printf("%-24s error: %v\n", label, err)
			return
		}
		fmt.Printf("%-24s %d\n", label, n)
	}
	count(&models.SalesOrder{}, "sales_orders")
	count(&models.SalesOrderItems{}, "sales_order_items")
	count(&models.PurchaseOrder{}, "purchase_orders")
	count(&models.ItemStockPrice{}, "item_stock_prices")
	count(&models.CustomerItemFavorite{}, "customer_item_favorites")
	count(&models.DocSerialNumber{}, "doc_serial_numbers")
	count(&models.TriggerMessageRecord{}, "trigger_message_records")
	count(&models.IdempotencyKey{}, "idempotency_keys")
	fmt.Println("dry run only; pass --dry-run=false --confirm=RESET to delete")
}
