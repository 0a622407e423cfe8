package dedup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/testhelpers"
)

func TestIndex_LookupExact(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0xdeadbeef, "incident-1", now)

	m, ok := ix.Lookup(0xdeadbeef, now.Add(-time.Hour), 8)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.IncidentUUID != "incident-1" || m.Distance != 0 {
		t.Errorf("unexpected match: %+v", m)
	}
}

func TestIndex_LookupNearDuplicate(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0xff00, "incident-1", now)

	// 0xff01 is one bit away
	m, ok := ix.Lookup(0xff01, now.Add(-time.Hour), 8)
	if !ok {
		t.Fatal("expected a near-duplicate match")
	}
	if m.Distance != 1 {
		t.Errorf("expected distance 1, got %d", m.Distance)
	}
}

func TestIndex_LookupBeyondThreshold(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0x0, "incident-1", now)

	if _, ok := ix.Lookup(^uint64(0), now.Add(-time.Hour), 8); ok {
		t.Error("distance 64 must not match with threshold 8")
	}
}

func TestIndex_LookupPrefersClosest(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0xff00, "far", now)  // distance 5 from probe
	ix.Insert(0xf000, "near", now) // distance 1 from probe

	m, ok := ix.Lookup(0xf001, now.Add(-time.Hour), 16)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.IncidentUUID != "near" {
		t.Errorf("expected closest entry, got %q at distance %d", m.IncidentUUID, m.Distance)
	}
}

func TestIndex_LookupIgnoresExpired(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0xdeadbeef, "ancient", now.Add(-48*time.Hour))

	if _, ok := ix.Lookup(0xdeadbeef, now.Add(-24*time.Hour), 8); ok {
		t.Error("entries older than cutoff must not match")
	}
}

func TestIndex_CheckAndInsert_NewEntry(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	cutoff := now.Add(-time.Hour)

	inserted := false
	m, fresh, err := ix.CheckAndInsert(0xabc, "incident-1", now, cutoff, 8, func() error {
		inserted = true
		return nil
	})
	if err != nil {
		t.Fatalf("check-and-insert: %v", err)
	}
	if !fresh || !inserted {
		t.Errorf("expected fresh insert, got fresh=%v inserted=%v match=%+v", fresh, inserted, m)
	}
	if ix.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", ix.Len())
	}
}

func TestIndex_CheckAndInsert_Duplicate(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	cutoff := now.Add(-time.Hour)
	ix.Insert(0xabc, "original", now)

	m, fresh, err := ix.CheckAndInsert(0xabc, "dupe", now, cutoff, 8, func() error {
		t.Fatal("insert callback must not run for a duplicate")
		return nil
	})
	if err != nil {
		t.Fatalf("check-and-insert: %v", err)
	}
	if fresh {
		t.Error("duplicate reported as fresh")
	}
	if m.IncidentUUID != "original" {
		t.Errorf("expected match on original, got %+v", m)
	}
}

func TestIndex_CheckAndInsert_InsertFailure(t *testing.T) {
	ix := NewIndex()
	now := time.Now()

	boom := errors.New("db down")
	_, _, err := ix.CheckAndInsert(0xabc, "incident-1", now, now.Add(-time.Hour), 8, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if ix.Len() != 0 {
		t.Error("failed insert must not leave an index entry")
	}
}

// Two goroutines racing the identical image must resolve to exactly one
// accepted incident.
func TestIndex_CheckAndInsert_ConcurrentIdentical(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	cutoff := now.Add(-time.Hour)

	const goroutines = 16
	var accepted int64
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, fresh, err := ix.CheckAndInsert(0xdeadbeef, "racer", now, cutoff, 8, func() error {
				return nil
			})
			if err != nil {
				t.Errorf("check-and-insert: %v", err)
			}
			if fresh {
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("expected exactly one accepted submission, got %d", accepted)
	}
	if ix.Len() != 1 {
		t.Errorf("expected exactly one index entry, got %d", ix.Len())
	}
}

func TestIndex_Evict(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Insert(0x1, "old", now.Add(-48*time.Hour))
	ix.Insert(0x2, "fresh", now)

	if evicted := ix.Evict(now.Add(-24 * time.Hour)); evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
	if ix.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", ix.Len())
	}
}

func TestIndex_Load(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	now := time.Now()

	for _, e := range []database.DedupEntry{
		{Hash: HashHex(0xaaa), IncidentUUID: "a", CreatedAt: now},
		{Hash: HashHex(0xbbb), IncidentUUID: "b", CreatedAt: now},
		{Hash: "corrupt", IncidentUUID: "c", CreatedAt: now},
	} {
		if err := db.Create(&e).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	ix := NewIndex()
	loaded, err := ix.Load(db, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != 2 {
		t.Errorf("expected 2 loaded entries (corrupt row skipped), got %d", loaded)
	}

	if _, ok := ix.Lookup(0xaaa, now.Add(-time.Hour), 0); !ok {
		t.Error("loaded hash not found")
	}
}
