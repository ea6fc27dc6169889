package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

// Dealer is the tenant root. Every catalog, stock and order document
// belongs to exactly one dealer.
type Dealer struct {
	ID           string    `gorm:"primary_key;size:64" json:"id"`
	DealerCode   string    `gorm:"size:30;not null;uniqueIndex" json:"dealerCode"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ContactName  string    `gorm:"size:255" json:"contactName"`
	ContactPhone string    `gorm:"size:30" json:"contactPhone"`
	Email        string    `gorm:"size:255" json:"email"`
	Address      string    `gorm:"size:500" json:"address"`
	City         string    `gorm:"size:100" json:"city"`
	IsActive     bool      `gorm:"not null;default:1" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewDealer struct {
	DealerCode   string `json:"dealerCode" binding:"required"`
	Name         string `json:"name" binding:"required"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	City         string `json:"city"`
}

// CreateDealer is admin-only; it is not scoped to the caller's dealer.
func CreateDealer(ctx context.Context, input NewDealer) (*Dealer, error) {
	db := config.GetDB()

	code := utils.NormalizeCode(input.DealerCode)
	if code == "" {
		return nil, errors.New("dealer code is required")
	}
	if err := utils.ValidateUnique[Dealer](db.WithContext(ctx), "dealer_code", code, "", ""); err != nil {
		return nil, errors.New("dealer code already exists")
	}

	dealer := Dealer{
		ID:           utils.NewDocumentId(),
		DealerCode:   code,
		Name:         input.Name,
		ContactName:  input.ContactName,
		ContactPhone: input.ContactPhone,
		Email:        input.Email,
		Address:      input.Address,
		City:         input.City,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&dealer).Error; err != nil {
		return nil, err
	}
	return &dealer, nil
}

func GetDealerById(ctx context.Context, id string) (*Dealer, error) {
	dealer, err := utils.RetrieveRedis[Dealer](id)
	if err != nil {
		return nil, err
	}
	if dealer == nil {
		dealer, err = utils.FetchSingleModel[Dealer](ctx, id)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Dealer](dealer, id); err != nil {
			return nil, err
		}
	}
	return dealer, nil
}

// GetDealersList returns active dealers. Admin contexts also see
// deactivated dealers so they can be reactivated.
func GetDealersList(ctx context.Context) ([]*Dealer, error) {
	db := config.GetDB()
	query := db.WithContext(ctx)
	if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
		query = query.Where("is_active = ?", true)
	}
	var dealers []*Dealer
	if err := query.Order("dealer_code").Find(&dealers).Error; err != nil {
		return nil, err
	}
	return dealers, nil
}

type UpdateDealerInput struct {
	Name         *string `json:"name"`
	ContactName  *string `json:"contactName"`
	ContactPhone *string `json:"contactPhone"`
	Email        *string `json:"email"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	IsActive     *bool   `json:"isActive"`
}

func UpdateDealer(ctx context.Context, id string, input UpdateDealerInput) (*Dealer, error) {
	db := config.GetDB()

	dealer, err := utils.FetchSingleModel[Dealer](ctx, id)
	if err != nil {
		return nil, errors.New("dealer not found")
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.ContactName != nil {
		updates["contact_name"] = *input.ContactName
	}
	if input.ContactPhone != nil {
		updates["contact_phone"] = *input.ContactPhone
	}
	if input.Email != nil {
		updates["email"] = *input.Email
	}
	if input.Address != nil {
		updates["address"] = *input.Address
	}
	if input.City != nil {
		updates["city"] = *input.City
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return dealer, nil
	}

	if err := db.WithContext(ctx).Model(&Dealer{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Dealer](id); err != nil {
		return nil, err
	}
	return utils.FetchSingleModel[Dealer](ctx, id)
}
