// seed-admin creates or updates the platform admin account. The profile
// gets a single null-dealer mapping with the admin role, which grants
// access to every dealer.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"gorm.io/gorm"
)

const (
	adminEmail = "admin@dealerapp.local"
	adminName  = "Dealer App Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.UserAccount
	err = db.WithContext(ctx).Model(&models.UserAccount{}).Where("email = ?", adminEmail).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup account: %v\n", err)
			os.Exit(1)
		}
		uid := utils.NewDocumentId()
		account := models.UserAccount{
			ID:       uid,
			Email:    adminEmail,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
		}
		profile := models.UserProfile{
			ID:    utils.NewDocumentId(),
			Uid:   uid,
			Email: adminEmail,
			Name:  adminName,
			Mappings: []models.DealerUserMapping{
				{
					DealerId:   nil,
					Roles:      models.RoleSet{models.RoleAdmin},
					UserIDName: "admin",
				},
			},
		}
		if err := db.WithContext(ctx).Create(&account).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin account: %v\n", err)
			os.Exit(1)
		}
		if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin profile: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin account: email=%q\n", adminEmail)
		return
	}

	// Update existing account: ensure password and active flag.
	if err := db.WithContext(ctx).Model(&models.UserAccount{}).Where("email = ?", adminEmail).Updates(map[string]any{
		"password":  hashedStr,
		"is_active": utils.NewTrue(),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin account: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin account: email=%q\n", adminEmail)
}
