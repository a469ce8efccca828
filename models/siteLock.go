package models

import (
	"fmt"

	"github.com/crisisops/relief_backend/config"
	"gorm.io/gorm"
)

// acquireEventPostingLock serializes case-number allocation and the
// duplicate gate per event across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped. Both acquire and release must run
// on the same pinned connection (gorm Connection), and release must
// happen outside any transaction on it: RELEASE_LOCK on a finished
// *sql.Tx errors out and the pooled connection would keep the lock.
func acquireEventPostingLock(conn *gorm.DB, eventId int) error {
	lockName := fmt.Sprintf("site-posting:%d", eventId)
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for event_id=%d", eventId)
	}
	return nil
}

func releaseEventPostingLock(conn *gorm.DB, eventId int) {
	lockName := fmt.Sprintf("site-posting:%d", eventId)
	var ok int
	if err := conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&ok).Error; err != nil {
		config.GetLogger().Warnf("could not release posting lock %s: %v", lockName, err)
	}
}
