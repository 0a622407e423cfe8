// Package ingest is the entry point of the pipeline: it validates a
// submitted image, deduplicates it against the perceptual-hash index and
// either creates a pending incident with an analysis job or links the
// submission to the incident it duplicates.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/dedup"
	"github.com/roadwatch/roadwatch/internal/queue"
)

// ErrMalformedInput marks an unreadable image. Nothing is created.
var ErrMalformedInput = errors.New("malformed image input")

// SourceMeta describes where a submission came from.
type SourceMeta struct {
	Source       string // "manual" or "scraper"
	Ref          string // post URL, original filename, etc.
	Caption      string
	Hashtag      string
	LocationHint string
}

// Result is the outcome of a submission.
type Result struct {
	Accepted     bool   `json:"accepted"`
	IncidentUUID string `json:"incident_uuid,omitempty"`
	DuplicateOf  string `json:"duplicate_of,omitempty"`
	Distance     int    `json:"distance,omitempty"`
	JobID        string `json:"job_id,omitempty"`
}

// Config tunes the gate.
type Config struct {
	UploadsDir        string
	HammingThreshold  int
	Retention         time.Duration
	RescoreDuplicates bool
}

// Gate is the ingestion gate.
type Gate struct {
	db    *gorm.DB
	index *dedup.Index
	jobs  *queue.Queue
	cfg   Config
}

// NewGate creates an ingestion gate.
func NewGate(db *gorm.DB, index *dedup.Index, jobs *queue.Queue, cfg Config) *Gate {
	return &Gate{db: db, index: index, jobs: jobs, cfg: cfg}
}

// Submit runs the full ingestion path for one image. Duplicates within
// Hamming distance of an indexed hash resolve to the existing incident
// and create no job (unless the rescore policy is enabled). Concurrent
// submissions of the identical image resolve to exactly one accepted
// incident via the index's per-shard check-and-insert.
func (g *Gate) Submit(data []byte, meta SourceMeta) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	hash, err := dedup.Compute(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	now := time.Now()
	cutoff := now.Add(-g.cfg.Retention)
	incidentUUID := uuid.NewString()
	rawPath := filepath.Join(g.cfg.UploadsDir, incidentUUID+".jpg")

	match, inserted, err := g.index.CheckAndInsert(hash, incidentUUID, now, cutoff, g.cfg.HammingThreshold, func() error {
		if err := os.MkdirAll(g.cfg.UploadsDir, 0755); err != nil {
			return fmt.Errorf("create uploads dir: %w", err)
		}
		if err := os.WriteFile(rawPath, data, 0644); err != nil {
			return fmt.Errorf("store raw artifact: %w", err)
		}

		incident := &database.Incident{
			UUID:         incidentUUID,
			Source:       meta.Source,
			SourceRef:    meta.Ref,
			SourceMeta:   sourceMetaJSON(meta),
			RawImagePath: rawPath,
			ImageHash:    dedup.HashHex(hash),
			Status:       database.IncidentStatusPending,
		}
		entry := &database.DedupEntry{
			Hash:         dedup.HashHex(hash),
			IncidentUUID: incidentUUID,
			CreatedAt:    now,
		}
		return g.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(incident).Error; err != nil {
				return err
			}
			return tx.Create(entry).Error
		})
	})
	if err != nil {
		// Incident creation failed; remove the orphaned artifact.
		os.Remove(rawPath)
		return nil, fmt.Errorf("ingest %s: %w", incidentUUID, err)
	}

	if !inserted {
		log.Printf("Duplicate submission (distance %d) resolved to incident %s", match.Distance, match.IncidentUUID)
		if err := g.db.Model(&database.Incident{}).
			Where("uuid = ?", match.IncidentUUID).
			Updates(map[string]interface{}{
				"duplicate_count":   gorm.Expr("duplicate_count + 1"),
				"last_duplicate_at": now,
			}).Error; err != nil {
			// Bookkeeping only; the submission still resolves.
			log.Printf("Failed to record duplicate sighting on %s: %v", match.IncidentUUID, err)
		}
		res := &Result{DuplicateOf: match.IncidentUUID, Distance: match.Distance}
		if g.cfg.RescoreDuplicates {
			// Configurable policy: a sharper re-upload may refresh the
			// linked incident's analysis. Default is a no-op.
			res.JobID = g.jobs.Enqueue(match.IncidentUUID, priorityFor(meta.Source))
		}
		return res, nil
	}

	jobID := g.jobs.Enqueue(incidentUUID, priorityFor(meta.Source))
	return &Result{Accepted: true, IncidentUUID: incidentUUID, JobID: jobID}, nil
}

func priorityFor(source string) queue.Priority {
	if source == "manual" {
		return queue.PriorityManual
	}
	return queue.PriorityScraped
}

func sourceMetaJSON(meta SourceMeta) database.JSONB {
	m := database.JSONB{}
	if meta.Caption != "" {
		m["caption"] = meta.Caption
	}
	if meta.Hashtag != "" {
		m["hashtag"] = meta.Hashtag
	}
	if meta.LocationHint != "" {
		m["location_hint"] = meta.LocationHint
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
