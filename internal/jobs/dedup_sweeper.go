// Package jobs holds the periodic maintenance loops: dedup retention
// eviction and job queue housekeeping.
package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/dedup"
)

// DedupSweeper evicts perceptual hashes older than the retention window
// from both the in-memory index and its persisted backing rows. After a
// hash ages out, a resubmission of the same image is a fresh incident.
type DedupSweeper struct {
	db        *gorm.DB
	index     *dedup.Index
	retention time.Duration
}

// NewDedupSweeper creates a new dedup sweeper.
func NewDedupSweeper(db *gorm.DB, index *dedup.Index, retention time.Duration) *DedupSweeper {
	return &DedupSweeper{db: db, index: index, retention: retention}
}

// Sweep evicts entries past retention. Returns how many were removed
// from the in-memory index.
func (s *DedupSweeper) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.retention)

	evicted := s.index.Evict(cutoff)

	rows, err := database.EvictDedupEntriesBefore(s.db, cutoff)
	if err != nil {
		return evicted, err
	}
	if rows > 0 {
		log.Printf("Dedup sweeper: evicted %d index entries, %d rows", evicted, rows)
	}
	return evicted, nil
}

// Start begins periodic sweeping.
func (s *DedupSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				log.Printf("Dedup sweeper error: %v", err)
			}
		case <-stop:
			log.Println("Dedup sweeper stopped")
			return
		}
	}
}
