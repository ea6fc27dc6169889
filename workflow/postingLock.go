package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireDealerPostingLock serializes trigger processing per dealer across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the processing transaction.
func AcquireDealerPostingLock(tx *gorm.DB, dealerId string) error {
	lockName := fmt.Sprintf("posting:%s", dealerId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for dealer_id=%s", dealerId)
	}
	return nil
}

func ReleaseDealerPostingLock(tx *gorm.DB, dealerId string) {
	lockName := fmt.Sprintf("posting:%s", dealerId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
