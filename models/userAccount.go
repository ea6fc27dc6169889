package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserAccount carries the login credential. Application state lives on
// the UserProfile keyed by the same uid.
type UserAccount struct {
	ID        string    `gorm:"primary_key;size:64" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null;default:1" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type LoginInfo struct {
	Token    string    `json:"token"`
	JwtToken string    `json:"jwtToken"`
	Uid      string    `json:"uid"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Dealers  []*Dealer `json:"dealers"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(html.EscapeString(strings.TrimSpace(email)))
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	email = normalizeEmail(email)

	account := UserAccount{}
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&account).Error; err != nil {
		return nil, errors.New("invalid email or password")
	}

	// check login credentials
	err := utils.ComparePassword(account.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return nil, errors.New("invalid email or password")
	}

	if account.IsActive != nil && !*account.IsActive {
		return nil, errors.New("user is disabled")
	}

	profile, err := GetUserProfileByUid(ctx, account.ID)
	if err != nil {
		return nil, errors.New("user profile not found")
	}

	dealers, err := UserDealerList(ctx, profile)
	if err != nil {
		return nil, err
	}

	jwtToken, err := utils.JwtGenerate(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	// store session token in redis
	token := uuid.New()
	token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		token_lifespan = 24
	}
	if err := config.SetRedisValue("Token:"+token.String(), account.ID, time.Duration(token_lifespan)*time.Hour); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:    token.String(),
		JwtToken: jwtToken,
		Uid:      account.ID,
		Email:    account.Email,
		Name:     profile.Name,
		Dealers:  dealers,
	}, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + fmt.Sprint(token)); err != nil {
		return false, nil
	}
	return true, nil
}

type SignupInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	MobileNo string `json:"mobileNo"`
}

// Signup provisions a self-service customer account with a profile
// carrying a single null-dealer customer mapping.
func Signup(ctx context.Context, input SignupInput) (*UserProfile, error) {
	db := config.GetDB()

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if err := utils.ValidateUnique[UserAccount](db.WithContext(ctx), "email", email, "", ""); err != nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	account := UserAccount{
		ID:       utils.NewDocumentId(),
		Email:    email,
		Password: string(hashedPassword),
		IsActive: utils.NewTrue(),
	}
	profile := UserProfile{
		ID:        utils.NewDocumentId(),
		Uid:       account.ID,
		Email:     email,
		Name:      input.Name,
		MobileNo:  input.MobileNo,
		FcmTokens: StringSlice{},
		Mappings: []DealerUserMapping{
			{
				DealerId:   nil,
				Roles:      RoleSet{RoleCustomer},
				UserIDName: "self",
			},
		},
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &profile, tx.Commit().Error
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func ChangePassword(ctx context.Context, input ChangePasswordInput) (bool, error) {
	uid, ok := utils.GetUidFromContext(ctx)
	if !ok || uid == "" {
		return false, errors.New("uid is required")
	}
	db := config.GetDB()

	var account UserAccount
	if err := db.WithContext(ctx).Where("id = ?", uid).Take(&account).Error; err != nil {
		return false, utils.ErrorRecordNotFound
	}
	if err := utils.ComparePassword(account.Password, input.OldPassword); err != nil {
		return false, errors.New("invalid password")
	}
	hashedPassword, err := utils.HashPassword(input.NewPassword)
	if err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Model(&UserAccount{}).Where("id = ?", uid).
		Update("password", string(hashedPassword)).Error; err != nil {
		return false, err
	}
	return true, nil
}
