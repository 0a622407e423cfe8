package database

import (
	"time"

	"gorm.io/gorm"
)

// ListDedupEntriesSince returns all hash entries inserted after cutoff,
// used to rebuild the in-memory dedup index on startup.
func ListDedupEntriesSince(db *gorm.DB, cutoff time.Time) ([]DedupEntry, error) {
	var entries []DedupEntry
	err := db.Where("created_at >= ?", cutoff).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// EvictDedupEntriesBefore removes hash entries older than cutoff and
// returns how many were deleted.
func EvictDedupEntriesBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("created_at < ?", cutoff).Delete(&DedupEntry{})
	return res.RowsAffected, res.Error
}
