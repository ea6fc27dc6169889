package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

// Customer is the dealer-scoped customer master record. ExternalCode
// ties it to the dealer's ERP and to the user mapping of a customer
// login.
type Customer struct {
	ID           string    `gorm:"primary_key;size:64" json:"customerID"`
	DealerId     string    `gorm:"size:64;not null;index" json:"dealerID"`
	ExternalCode string    `gorm:"size:64;not null;index" json:"externalCode"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	MobileNo     string    `gorm:"size:30" json:"mobileNo"`
	AreaCode     string    `gorm:"size:30;index" json:"areaCode"`
	Address      string    `gorm:"size:500" json:"address"`
	IsActive     bool      `gorm:"not null;default:1" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewCustomer struct {
	ExternalCode string `json:"externalCode" binding:"required"`
	Name         string `json:"name" binding:"required"`
	MobileNo     string `json:"mobileNo"`
	AreaCode     string `json:"areaCode"`
	Address      string `json:"address"`
}

func CreateCustomer(ctx context.Context, input NewCustomer) (*Customer, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	code := utils.NormalizeCode(input.ExternalCode)
	if err := utils.ValidateUnique[Customer](db.WithContext(ctx), "external_code", code, dealerId, ""); err != nil {
		return nil, errors.New("customer external code already exists")
	}

	customer := Customer{
		ID:           utils.NewDocumentId(),
		DealerId:     dealerId,
		ExternalCode: code,
		Name:         input.Name,
		MobileNo:     input.MobileNo,
		AreaCode:     input.AreaCode,
		Address:      input.Address,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataCustomers); err != nil {
		return &customer, err
	}
	return &customer, nil
}

// GetCustomersList applies role scoping: a customer-role user only
// sees their own record, other roles are filtered by allowed areas
// when the mapping carries any.
func GetCustomersList(ctx context.Context, profile *UserProfile) ([]*Customer, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	mapping := profile.MappingForDealer(dealerId)
	if mapping == nil {
		return nil, errors.New("not associated with dealer")
	}

	query := db.WithContext(ctx).Where("dealer_id = ? AND is_active = ?", dealerId, true)
	if mapping.Roles.Contains(RoleCustomer) && !HasCapability(profile, CapabilityViewAllOrders, dealerId) {
		query = query.Where("external_code = ?", mapping.CustomerExternalCode)
	} else if len(mapping.AllowedAreas) > 0 {
		query = query.Where("area_code IN ?", []string(mapping.AllowedAreas))
	}

	var customers []*Customer
	if err := query.Order("name").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
