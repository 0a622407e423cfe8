package dedup

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
)

const shardCount = 256

type entry struct {
	hash uint64
	uuid string
	at   time.Time
}

type shard struct {
	mu      sync.Mutex
	entries []entry
}

// Match is a near-duplicate hit returned by index lookups.
type Match struct {
	IncidentUUID string
	Distance     int
}

// Index is the in-memory perceptual-hash store. Hashes are sharded by
// their top byte; concurrent submissions of the identical image always
// land on the same shard, so serializing per shard makes check-and-insert
// atomic for them.
type Index struct {
	shards [shardCount]shard
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

func (ix *Index) shardFor(hash uint64) *shard {
	return &ix.shards[hash>>56]
}

// Load rebuilds the index from persisted entries inserted after cutoff.
func (ix *Index) Load(db *gorm.DB, cutoff time.Time) (int, error) {
	rows, err := database.ListDedupEntriesSince(db, cutoff)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, row := range rows {
		h, err := ParseHashHex(row.Hash)
		if err != nil {
			continue // skip corrupt rows rather than refusing to start
		}
		ix.Insert(h, row.IncidentUUID, row.CreatedAt)
		loaded++
	}
	return loaded, nil
}

// Insert adds an entry without a duplicate check. Used by Load and by
// CheckAndInsert once the caller's insert callback has succeeded.
func (ix *Index) Insert(hash uint64, uuid string, at time.Time) {
	s := ix.shardFor(hash)
	s.mu.Lock()
	s.entries = append(s.entries, entry{hash: hash, uuid: uuid, at: at})
	s.mu.Unlock()
}

// Lookup scans the whole index for the closest entry within maxDistance
// that was inserted at or after cutoff.
func (ix *Index) Lookup(hash uint64, cutoff time.Time, maxDistance int) (Match, bool) {
	best := Match{Distance: maxDistance + 1}
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		for _, e := range s.entries {
			if e.at.Before(cutoff) {
				continue
			}
			if d := Distance(hash, e.hash); d < best.Distance {
				best = Match{IncidentUUID: e.uuid, Distance: d}
			}
		}
		s.mu.Unlock()
	}
	if best.IncidentUUID == "" {
		return Match{}, false
	}
	return best, true
}

// CheckAndInsert resolves a submission to either an existing incident or a
// new index entry. The near-duplicate scan runs first; if nothing matches,
// the owning shard is locked, identical-hash entries are re-checked, and
// only then does the caller's insert callback run (typically the DB
// transaction creating the incident). Two goroutines submitting the same
// image therefore resolve to exactly one accepted incident: the loser of
// the shard lock sees the winner's entry on the re-check.
func (ix *Index) CheckAndInsert(hash uint64, uuid string, now, cutoff time.Time, maxDistance int, insert func() error) (Match, bool, error) {
	if m, ok := ix.Lookup(hash, cutoff, maxDistance); ok {
		return m, false, nil
	}

	s := ix.shardFor(hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.at.Before(cutoff) {
			continue
		}
		if d := Distance(hash, e.hash); d <= maxDistance {
			return Match{IncidentUUID: e.uuid, Distance: d}, false, nil
		}
	}

	if err := insert(); err != nil {
		return Match{}, false, err
	}
	s.entries = append(s.entries, entry{hash: hash, uuid: uuid, at: now})
	return Match{}, true, nil
}

// Evict drops in-memory entries older than cutoff and returns the count.
// Persisted rows are evicted separately by the sweeper.
func (ix *Index) Evict(cutoff time.Time) int {
	evicted := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.at.Before(cutoff) {
				evicted++
				continue
			}
			kept = append(kept, e)
		}
		s.entries = kept
		s.mu.Unlock()
	}
	return evicted
}

// Len returns the number of indexed hashes.
func (ix *Index) Len() int {
	n := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
