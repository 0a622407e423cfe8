// Package pipeline runs the per-incident analysis: parallel detection and
// OCR, geolocation fusion, PII redaction, severity scoring and confidence
// routing. Workers share no mutable state; everything flows through the
// job queue and the database.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/analyzers"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/events"
	"github.com/roadwatch/roadwatch/internal/fusion"
	"github.com/roadwatch/roadwatch/internal/queue"
	"github.com/roadwatch/roadwatch/internal/redact"
	"github.com/roadwatch/roadwatch/internal/routing"
	"github.com/roadwatch/roadwatch/internal/services"
	"github.com/roadwatch/roadwatch/internal/utils"
)

// Collaborators bundles the external analysis services. PlaceMatcher is
// optional and may be nil.
type Collaborators struct {
	Detector     analyzers.Detector
	OCR          analyzers.OCR
	Geocoder     analyzers.Geocoder
	PlaceMatcher analyzers.PlaceMatcher
}

// Config tunes the worker pool.
type Config struct {
	WorkerCount     int
	AnalyzerTimeout time.Duration
	PublicDir       string
	PollInterval    time.Duration
}

// Pool leases jobs and drives them through the analysis stages.
type Pool struct {
	db      *gorm.DB
	jobs    *queue.Queue
	collab  Collaborators
	reviews *services.ReviewService
	scoring *config.ScoringConfig
	hub     *events.Hub
	cfg     Config
}

// NewPool creates a worker pool. hub may be nil in tests.
func NewPool(db *gorm.DB, jobs *queue.Queue, collab Collaborators, reviews *services.ReviewService, scoring *config.ScoringConfig, hub *events.Hub, cfg Config) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Pool{db: db, jobs: jobs, collab: collab, reviews: reviews, scoring: scoring, hub: hub, cfg: cfg}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		go p.worker(ctx, i)
	}
	log.Printf("Worker pool started with %d workers", p.cfg.WorkerCount)
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		job := p.jobs.Lease()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-p.jobs.Wake():
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}
		p.Process(ctx, job)
	}
}

// Process runs one leased job to a terminal outcome. Exported so tests
// can drive jobs synchronously.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	incident, err := database.GetIncidentByUUID(p.db, job.IncidentUUID)
	if err != nil {
		// Incident gone (withdrawn submission); nothing left to do.
		log.Printf("Job %s: incident %s not found, completing: %v", job.ID, job.IncidentUUID, err)
		p.jobs.Complete(job.ID)
		return
	}

	if p.aborted(job) {
		return
	}

	raw, err := os.ReadFile(incident.RawImagePath)
	if err != nil {
		p.jobs.Fail(job.ID, fmt.Errorf("read raw artifact: %w", err), false)
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		p.jobs.Fail(job.ID, fmt.Errorf("decode raw artifact: %w", err), false)
		return
	}

	// Stage 1: detection and OCR fan out in parallel. Both run to
	// completion; their errors are judged together afterwards.
	var (
		detections []analyzers.Detection
		spans      []analyzers.TextSpan
		detErr     error
		ocrErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.cfg.AnalyzerTimeout)
		defer cancel()
		detections, detErr = p.collab.Detector.Detect(cctx, raw)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.cfg.AnalyzerTimeout)
		defer cancel()
		spans, ocrErr = p.collab.OCR.Extract(cctx, raw)
		return nil
	})
	g.Wait()

	if analyzers.IsTransient(detErr) || analyzers.IsTransient(ocrErr) {
		// Retrying redoes both signals; at-least-once delivery makes
		// that safe.
		p.jobs.Fail(job.ID, firstErr(detErr, ocrErr), true)
		return
	}
	if detErr != nil && ocrErr != nil {
		// Both primary signals permanently failed; nothing to analyze.
		p.jobs.Fail(job.ID, fmt.Errorf("both analysis signals failed: %v; %v", detErr, ocrErr), false)
		return
	}
	degraded := detErr != nil || ocrErr != nil
	if degraded {
		log.Printf("Job %s: degraded analysis for incident %s: %v", job.ID, incident.UUID, firstErr(detErr, ocrErr))
	}

	// Persist partial results before the next external call so a
	// cancellation or crash retains them.
	ocrText := joinSpans(spans)
	if err := p.storeAnalysis(incident, detections, ocrText); err != nil {
		p.jobs.Fail(job.ID, err, true)
		return
	}

	if p.aborted(job) {
		return
	}

	// Stage 2: geolocation signals.
	geoCandidate, err := p.geocode(ctx, incident, spans)
	if err != nil {
		p.jobs.Fail(job.ID, err, true)
		return
	}
	placeMatch := p.placeMatch(ctx, raw)

	fused := fusion.Fuse(geoCandidate, placeMatch, fusion.Thresholds{
		OCRConfidence:    p.scoring.Fusion.OCRConfidenceThreshold,
		VisualSimilarity: p.scoring.Fusion.VisualSimilarityThreshold,
		EpsilonMeters:    p.scoring.Fusion.AgreementEpsilonMeters,
		AgreementBoost:   p.scoring.Fusion.AgreementBoost,
		DisagreePenalty:  p.scoring.Fusion.DisagreementPenalty,
	})

	if p.aborted(job) {
		return
	}

	// Stage 3: PII redaction. The public artifact reference is only set
	// once a redacted copy is safely on disk.
	redactedPath, piiUncertain, err := p.redactArtifact(incident.UUID, img, detections)
	if err != nil {
		p.jobs.Fail(job.ID, err, true)
		return
	}

	// Stage 4: scoring and routing.
	detScore, severity := p.scoreDetections(detections)
	outcome, score := routing.Route(routing.Inputs{
		DetectionScore: detScore,
		GeoConfidence:  fused.Confidence,
		Severity:       severity,
		PIIUncertain:   piiUncertain,
		Degraded:       degraded,
		GeoMismatch:    fused.Mismatch,
	}, routing.Policy{
		DetectionWeight: p.scoring.Router.DetectionWeight,
		GeoWeight:       p.scoring.Router.GeoWeight,
		SeverityWeight:  p.scoring.Router.SeverityWeight,
		High:            p.scoring.Router.HighThreshold,
		Low:             p.scoring.Router.LowThreshold,
	})

	now := time.Now()
	updates := map[string]interface{}{
		"geo_confidence": fused.Confidence,
		"geo_source":     fused.Source,
		"geo_mismatch":   fused.Mismatch,
		"severity":       severity,
		"degraded":       degraded,
		"pii_uncertain":  piiUncertain,
		"processed_at":   &now,
	}
	if fused.Resolved {
		updates["geo_lat"] = fused.Lat
		updates["geo_lon"] = fused.Lon
	}
	if redactedPath != "" {
		updates["redacted_image_path"] = redactedPath
	}
	if err := p.db.Model(&database.Incident{}).Where("uuid = ?", incident.UUID).Updates(updates).Error; err != nil {
		p.jobs.Fail(job.ID, fmt.Errorf("persist analysis: %w", err), true)
		return
	}

	reason := fmt.Sprintf("detection=%.2f geo=%.2f severity=%.2f", detScore, fused.Confidence, severity)
	if err := p.reviews.ApplyRouting(incident.UUID, outcome, score, reason); err != nil {
		if services.IsReviewConflict(err) {
			// Redelivered job racing a reviewer; keep their state.
			log.Printf("Job %s: routing skipped: %v", job.ID, err)
		} else {
			p.jobs.Fail(job.ID, err, true)
			return
		}
	}

	p.jobs.Complete(job.ID)
}

// aborted completes the job early when its cancellation flag is set.
// Already-persisted partial results are retained, not rolled back.
func (p *Pool) aborted(job *queue.Job) bool {
	if !p.jobs.Cancelled(job.ID) {
		return false
	}
	log.Printf("Job %s cancelled, aborting before next stage", job.ID)
	p.jobs.Complete(job.ID)
	return true
}

func (p *Pool) storeAnalysis(incident *database.Incident, detections []analyzers.Detection, ocrText string) error {
	rows := make([]database.Detection, len(detections))
	for i, d := range detections {
		rows[i] = database.Detection{
			Position:   i,
			Class:      d.Class,
			Confidence: d.Confidence,
			X:          d.X,
			Y:          d.Y,
			W:          d.W,
			H:          d.H,
		}
	}
	if err := database.ReplaceDetections(p.db, incident.ID, rows); err != nil {
		return fmt.Errorf("store detections: %w", err)
	}
	return p.db.Model(incident).Update("ocr_text", ocrText).Error
}

// geocode resolves OCR text (and the submitter's location hint, if any)
// to the best candidate coordinate. A transient geocoder failure bubbles
// up to retry the job; no usable candidate is simply an absent signal.
func (p *Pool) geocode(ctx context.Context, incident *database.Incident, spans []analyzers.TextSpan) (*analyzers.GeoCandidate, error) {
	texts := make([]string, 0, 4)
	for _, span := range spans {
		if t := utils.CleanText(span.Text); len(t) > 2 {
			texts = append(texts, t)
		}
		if len(texts) == 3 {
			break
		}
	}
	if hint, ok := incident.SourceMeta["location_hint"].(string); ok && hint != "" {
		texts = append(texts, hint)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	var best *analyzers.GeoCandidate
	for _, text := range texts {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzerTimeout)
		candidates, err := p.collab.Geocoder.Geocode(cctx, text)
		cancel()
		if err != nil {
			if analyzers.IsTransient(err) {
				return nil, err
			}
			continue // permanent rejection of this text, try the next
		}
		for i := range candidates {
			if best == nil || candidates[i].Confidence > best.Confidence {
				c := candidates[i]
				best = &c
			}
		}
	}
	return best, nil
}

// placeMatch queries the optional visual signal. Failures here degrade to
// a missing signal instead of failing the job; the fusion rule already
// handles absence.
func (p *Pool) placeMatch(ctx context.Context, raw []byte) *analyzers.PlaceMatch {
	if p.collab.PlaceMatcher == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzerTimeout)
	defer cancel()
	match, err := p.collab.PlaceMatcher.Match(cctx, raw)
	if err != nil {
		log.Printf("Place match unavailable: %v", err)
		return nil
	}
	return match
}

// redactArtifact produces the public artifact. With PII present and no
// trustworthy redaction possible, no public path is returned and the
// uncertain flag forces review.
func (p *Pool) redactArtifact(incidentUUID string, img image.Image, detections []analyzers.Detection) (string, bool, error) {
	redactor := &redact.Redactor{
		PaddingFraction:     p.scoring.Redaction.PaddingFraction,
		BlurSigma:           p.scoring.Redaction.BlurSigma,
		MinRegionConfidence: p.scoring.Redaction.MinRegionConfidence,
	}

	var regions []redact.Region
	for _, d := range detections {
		if d.Class == "face" || d.Class == "plate" {
			regions = append(regions, redact.Region{X: d.X, Y: d.Y, W: d.W, H: d.H, Confidence: d.Confidence})
		}
	}

	out := redactor.Redact(img, regions)
	path := filepath.Join(p.cfg.PublicDir, incidentUUID+".jpg")
	if err := redact.WriteJPEG(out.Image, path); err != nil {
		if len(regions) > 0 {
			// Never publish with unredacted PII; hold for review instead.
			log.Printf("Redaction write failed for %s, holding for review: %v", incidentUUID, err)
			return "", true, nil
		}
		return "", false, err
	}
	return path, out.Uncertain, nil
}

// scoreDetections returns the best accident-relevant confidence and the
// class-weighted severity heuristic.
func (p *Pool) scoreDetections(detections []analyzers.Detection) (detScore, severity float64) {
	for _, d := range detections {
		weight, relevant := p.scoring.SeverityWeights[d.Class]
		if !relevant {
			continue
		}
		if d.Confidence > detScore {
			detScore = d.Confidence
		}
		if s := weight * d.Confidence; s > severity {
			severity = s
		}
	}
	return detScore, severity
}

func joinSpans(spans []analyzers.TextSpan) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if t := utils.CleanText(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
