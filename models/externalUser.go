package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"gorm.io/gorm"
)

type NewExternalUser struct {
	ExternalUserID       string   `json:"externalUserID" binding:"required"`
	Email                string   `json:"email" binding:"required"`
	Name                 string   `json:"name"`
	MobileNo             string   `json:"mobileNo"`
	Roles                []string `json:"roles" binding:"required"`
	UserIDName           string   `json:"userIDName"`
	CustomerExternalCode string   `json:"customerExternalCode"`
	AllowedAreas         []string `json:"allowedAreas"`
}

// CreateExternalUser provisions an account for a user pushed from the
// dealer's external system, or reuses the account matching the email.
// The dealer mapping is upserted into the profile, replacing an
// existing mapping for the same dealer. The initial password is the
// external user id.
func CreateExternalUser(ctx context.Context, input NewExternalUser) (*UserProfile, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()
	if err := utils.ValidateResourceId[Dealer](db.WithContext(ctx), dealerId, ""); err != nil {
		return nil, errors.New("dealer not found")
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	roles := make(RoleSet, 0, len(input.Roles))
	for _, r := range input.Roles {
		role, err := ParseRole(r)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, errors.New("at least one role is required")
	}

	tx := db.Begin()

	var account UserAccount
	err := tx.WithContext(ctx).Where("email = ?", email).Take(&account).Error
	if err != nil {
		hashedPassword, err := utils.HashPassword(input.ExternalUserID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		account = UserAccount{
			ID:       utils.NewDocumentId(),
			Email:    email,
			Password: string(hashedPassword),
			IsActive: utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	var profile UserProfile
	err = tx.WithContext(ctx).Preload("Mappings").Where("uid = ?", account.ID).First(&profile).Error
	if err != nil {
		profile = UserProfile{
			ID:        utils.NewDocumentId(),
			Uid:       account.ID,
			Email:     email,
			Name:      input.Name,
			MobileNo:  input.MobileNo,
			FcmTokens: StringSlice{},
		}
		if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// replace an existing mapping for the same dealer
	if err := tx.WithContext(ctx).
		Where("user_profile_id = ? AND dealer_id = ?", profile.ID, dealerId).
		Delete(&DealerUserMapping{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	mapping := DealerUserMapping{
		UserProfileId:        profile.ID,
		DealerId:             &dealerId,
		Roles:                roles,
		UserIDName:           input.UserIDName,
		CustomerExternalCode: input.CustomerExternalCode,
		AllowedAreas:         StringSlice(input.AllowedAreas),
		HasExternalSystem:    true,
	}
	if err := tx.WithContext(ctx).Create(&mapping).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishTriggerEvent(ctx, tx, dealerId, profile.ID, ReferenceTypeExternalUser, ActionCreate, nil, mapping); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataSalespersons); err != nil {
		return &profile, err
	}
	return GetUserProfileByUid(ctx, account.ID)
}

// DeleteExternalUser removes the dealer's mapping from the profile.
// When it was the last mapping the profile and account go with it.
func DeleteExternalUser(ctx context.Context, email string) (bool, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return false, errors.New("dealer id is required")
	}
	db := config.GetDB()

	profile, err := GetUserProfileByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, errors.New("user not found")
	}

	var target *DealerUserMapping
	for i := range profile.Mappings {
		m := &profile.Mappings[i]
		if m.DealerId != nil && *m.DealerId == dealerId {
			target = m
			break
		}
	}
	if target == nil {
		return false, errors.New("user is not mapped to this dealer")
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("id = ?", target.ID).
		Delete(&DealerUserMapping{}).Error; err != nil {
		tx.Rollback()
		return false, err
	}

	if len(profile.Mappings) == 1 {
		if err := tx.WithContext(ctx).Where("id = ?", profile.ID).
			Delete(&UserProfile{}).Error; err != nil {
			tx.Rollback()
			return false, err
		}
		if err := tx.WithContext(ctx).Where("id = ?", profile.Uid).
			Delete(&UserAccount{}).Error; err != nil {
			tx.Rollback()
			return false, err
		}
	}

	if err := PublishTriggerEvent(ctx, tx, dealerId, profile.ID, ReferenceTypeExternalUser, ActionDelete, target, nil); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit().Error; err != nil {
		return false, err
	}

	if err := UpdateVersionOfStaticData(ctx, dealerId, StaticDataSalespersons); err != nil {
		return true, err
	}
	return true, nil
}

// ExternalUsersForDealer lists the profiles mapped to the dealer.
func ExternalUsersForDealer(ctx context.Context) ([]*UserProfile, error) {
	dealerId, ok := utils.GetDealerIdFromContext(ctx)
	if !ok || dealerId == "" {
		return nil, errors.New("dealer id is required")
	}
	db := config.GetDB()

	var profileIds []string
	if err := db.WithContext(ctx).Model(&DealerUserMapping{}).
		Where("dealer_id = ?", dealerId).
		Pluck("user_profile_id", &profileIds).Error; err != nil {
		return nil, err
	}
	if len(profileIds) == 0 {
		return []*UserProfile{}, nil
	}

	var profiles []*UserProfile
	if err := db.WithContext(ctx).Preload("Mappings", func(tx *gorm.DB) *gorm.DB {
		return tx.Where("dealer_id = ?", dealerId)
	}).Where("id IN ?", profileIds).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
