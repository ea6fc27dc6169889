package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
)

// UserProfile holds the application identity of an account, including
// the dealer-user mappings that drive every authorization decision.
type UserProfile struct {
	ID        string              `gorm:"primary_key;size:64" json:"id"`
	Uid       string              `gorm:"size:64;not null;uniqueIndex" json:"uid"`
	Email     string              `gorm:"size:255;not null;index" json:"email"`
	Name      string              `gorm:"size:255" json:"name"`
	MobileNo  string              `gorm:"size:30" json:"mobileNo"`
	FcmTokens StringSlice         `gorm:"type:json" json:"fcmTokens"`
	Mappings  []DealerUserMapping `gorm:"foreignKey:UserProfileId;references:ID" json:"mappings"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
}

// DealerUserMapping grants a set of roles at one dealer. A nil DealerId
// in the profile's first mapping grants access to every dealer.
type DealerUserMapping struct {
	ID                   int         `gorm:"primary_key" json:"id"`
	UserProfileId        string      `gorm:"size:64;not null;index" json:"userProfileId"`
	DealerId             *string     `gorm:"size:64;index" json:"dealerId"`
	Roles                RoleSet     `gorm:"type:json" json:"roles"`
	UserIDName           string      `gorm:"size:100" json:"userIDName"`
	CustomerExternalCode string      `gorm:"size:64" json:"customerExternalCode"`
	AllowedAreas         StringSlice `gorm:"type:json" json:"allowedAreas"`
	HasExternalSystem    bool        `gorm:"not null;default:0" json:"hasExternalSystem"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func GetUserProfileByUid(ctx context.Context, uid string) (*UserProfile, error) {
	db := config.GetDB()
	var profile UserProfile
	err := db.WithContext(ctx).Preload("Mappings").
		Where("uid = ?", uid).First(&profile).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &profile, nil
}

func GetUserProfileByEmail(ctx context.Context, email string) (*UserProfile, error) {
	db := config.GetDB()
	var profile UserProfile
	err := db.WithContext(ctx).Preload("Mappings").
		Where("email = ?", email).First(&profile).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &profile, nil
}

// MappingForDealer returns the mapping that applies at the given dealer.
// A nil-dealer mapping applies everywhere.
func (p *UserProfile) MappingForDealer(dealerId string) *DealerUserMapping {
	if p == nil {
		return nil
	}
	for i := range p.Mappings {
		m := &p.Mappings[i]
		if m.DealerId == nil {
			return m
		}
		if *m.DealerId == dealerId {
			return m
		}
	}
	return nil
}

// HasRole reports whether the profile may act at the dealer with one of
// the allowed roles. An empty allowedRoles list admits any authenticated
// user. A nil profile always fails.
func HasRole(profile *UserProfile, allowedRoles []Role, dealerId string) bool {
	if profile == nil {
		return false
	}
	if len(allowedRoles) == 0 {
		return true
	}
	mapping := profile.MappingForDealer(dealerId)
	if mapping == nil {
		return false
	}
	for _, role := range allowedRoles {
		if mapping.Roles.Contains(role) {
			return true
		}
	}
	return false
}

// IsAssociatedWithDealer reports whether the profile may touch the
// dealer's data at all. A profile whose first mapping has a nil dealer
// id is global and passes for every dealer.
func IsAssociatedWithDealer(profile *UserProfile, dealerId string) bool {
	if profile == nil || len(profile.Mappings) == 0 {
		return false
	}
	if profile.Mappings[0].DealerId == nil {
		return true
	}
	for i := range profile.Mappings {
		if profile.Mappings[i].DealerId != nil && *profile.Mappings[i].DealerId == dealerId {
			return true
		}
	}
	return false
}

// HasCapability reports whether any role the profile holds at the dealer
// grants the capability.
func HasCapability(profile *UserProfile, capability Capability, dealerId string) bool {
	if profile == nil {
		return false
	}
	mapping := profile.MappingForDealer(dealerId)
	if mapping == nil {
		return false
	}
	for _, role := range mapping.Roles {
		if role.HasCapability(capability) {
			return true
		}
	}
	return false
}

// RegisterFcmToken appends a device token to the profile, keeping the
// list free of duplicates.
func RegisterFcmToken(ctx context.Context, uid string, token string) error {
	if token == "" {
		return errors.New("fcm token is required")
	}
	db := config.GetDB()

	var profile UserProfile
	if err := db.WithContext(ctx).Where("uid = ?", uid).First(&profile).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	tokens := utils.UniqueSlice(append([]string(profile.FcmTokens), token))
	return db.WithContext(ctx).Model(&UserProfile{}).Where("id = ?", profile.ID).
		Update("fcm_tokens", StringSlice(tokens)).Error
}

// UserDealerList resolves the dealers the session user may act for. A
// global mapping returns every active dealer.
func UserDealerList(ctx context.Context, profile *UserProfile) ([]*Dealer, error) {
	if profile == nil || len(profile.Mappings) == 0 {
		return []*Dealer{}, nil
	}
	if profile.Mappings[0].DealerId == nil {
		return GetDealersList(ctx)
	}

	ids := make([]string, 0, len(profile.Mappings))
	for i := range profile.Mappings {
		if profile.Mappings[i].DealerId != nil {
			ids = append(ids, *profile.Mappings[i].DealerId)
		}
	}
	db := config.GetDB()
	var dealers []*Dealer
	if err := db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).
		Order("dealer_code").Find(&dealers).Error; err != nil {
		return nil, err
	}
	return dealers, nil
}
