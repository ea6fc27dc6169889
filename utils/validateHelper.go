package utils

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ValidateResourceId checks that a row of type T with the given id exists.
// When dealerId is non-empty the lookup is scoped to that dealer.
func ValidateResourceId[T any](tx *gorm.DB, id string, dealerId string) error {
	var count int64
	query := tx.Model(new(T)).Where("id = ?", id)
	if dealerId != "" {
		query = query.Where("dealer_id = ?", dealerId)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("invalid resource id %s", id)
	}
	return nil
}

// ValidateUnique fails when another row of type T already holds the same
// value in the given column. excludeId skips the row being updated.
func ValidateUnique[T any](tx *gorm.DB, column string, value interface{}, dealerId string, excludeId string) error {
	var count int64
	query := tx.Model(new(T)).Where(fmt.Sprintf("%s = ?", column), value)
	if dealerId != "" {
		query = query.Where("dealer_id = ?", dealerId)
	}
	if excludeId != "" {
		query = query.Where("id <> ?", excludeId)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate value for " + column)
	}
	return nil
}

// ResourceCountWhere counts rows of type T matching the condition,
// scoped to the dealer when dealerId is non-empty.
func ResourceCountWhere[T any](tx *gorm.DB, dealerId string, condition string, args ...interface{}) (int64, error) {
	var count int64
	query := tx.Model(new(T))
	if dealerId != "" {
		query = query.Where("dealer_id = ?", dealerId)
	}
	if condition != "" {
		query = query.Where(condition, args...)
	}
	err := query.Count(&count).Error
	return count, err
}
