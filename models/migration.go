package models

import (
	"log"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Dealer{}, &Customer{},
		&UserAccount{}, &UserProfile{}, &DealerUserMapping{},
		&Item{}, &ItemPackage{}, &ItemStockPrice{},
		&PurchaseOrder{}, &SalesOrder{}, &SalesOrderItems{},
		&CustomerItemFavorite{}, &DocSerialNumber{}, &StaticDataVersion{},
		&TriggerMessageRecord{}, &IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
