package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
)

// BoundingBox is a geographic filter for feed queries.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// FeedQuery filters and pages the public feed.
type FeedQuery struct {
	From            *time.Time
	To              *time.Time
	BBox            *BoundingBox
	OrderBySeverity bool
	Offset          int
	Limit           int
}

// FeedItem is the public projection of an incident. It only ever carries
// the redacted artifact; the raw image path never leaves the reviewer
// surface.
type FeedItem struct {
	UUID          string                  `json:"uuid"`
	Source        string                  `json:"source"`
	ImagePath     string                  `json:"image_path"`
	GeoLat        *float64                `json:"geo_lat,omitempty"`
	GeoLon        *float64                `json:"geo_lon,omitempty"`
	GeoConfidence float64                 `json:"geo_confidence"`
	GeoSource     string                  `json:"geo_source,omitempty"`
	Severity      float64                 `json:"severity"`
	Status        database.IncidentStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ListQuery filters the operator incident list.
type ListQuery struct {
	Status         database.IncidentStatus
	NeedsAttention *bool
	From           *time.Time
	To             *time.Time
	Offset         int
	Limit          int
}

// IncidentService owns the persisted incident view: the public feed, the
// operator list and detail fetches.
type IncidentService struct {
	db *gorm.DB
}

// NewIncidentService creates an incident service.
func NewIncidentService(db *gorm.DB) *IncidentService {
	return &IncidentService{db: db}
}

// Feed returns the public feed. Only auto_published and approved
// incidents can ever appear here; the status set is hard-coded, not
// caller-supplied.
func (s *IncidentService) Feed(q FeedQuery) ([]FeedItem, int64, error) {
	base := s.db.Model(&database.Incident{}).
		Where("status IN ?", database.FeedVisibleStatuses).
		Where("redacted_image_path <> ''")

	if q.From != nil {
		base = base.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		base = base.Where("created_at <= ?", *q.To)
	}
	if q.BBox != nil {
		base = base.Where("geo_lat >= ? AND geo_lat <= ? AND geo_lon >= ? AND geo_lon <= ?",
			q.BBox.MinLat, q.BBox.MaxLat, q.BBox.MinLon, q.BBox.MaxLon)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if q.OrderBySeverity {
		order = "severity DESC, created_at DESC"
	}

	var incidents []database.Incident
	if err := base.Order(order).Offset(q.Offset).Limit(q.Limit).Find(&incidents).Error; err != nil {
		return nil, 0, err
	}

	items := make([]FeedItem, 0, len(incidents))
	for _, inc := range incidents {
		items = append(items, FeedItem{
			UUID:          inc.UUID,
			Source:        inc.Source,
			ImagePath:     inc.RedactedImagePath,
			GeoLat:        inc.GeoLat,
			GeoLon:        inc.GeoLon,
			GeoConfidence: inc.GeoConfidence,
			GeoSource:     inc.GeoSource,
			Severity:      inc.Severity,
			Status:        inc.Status,
			CreatedAt:     inc.CreatedAt,
		})
	}
	return items, total, nil
}

// List returns the operator view, including pending, failed and
// needs-attention incidents that the public feed hides.
func (s *IncidentService) List(q ListQuery) ([]database.Incident, int64, error) {
	base := s.db.Model(&database.Incident{})
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}
	if q.NeedsAttention != nil {
		base = base.Where("needs_attention = ?", *q.NeedsAttention)
	}
	if q.From != nil {
		base = base.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		base = base.Where("created_at <= ?", *q.To)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []database.Incident
	err := base.Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&incidents).Error
	return incidents, total, err
}

// Get returns one incident with its detections.
func (s *IncidentService) Get(uuid string) (*database.Incident, error) {
	return database.GetIncidentByUUID(s.db, uuid)
}

// Metrics summarizes the persisted pipeline state.
type Metrics struct {
	Total          int64     `json:"total"`
	Published      int64     `json:"published"`
	InReview       int64     `json:"in_review"`
	Rejected       int64     `json:"rejected"`
	Pending        int64     `json:"pending"`
	NeedsAttention int64     `json:"needs_attention"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Metrics returns incident counts by state.
func (s *IncidentService) Metrics() (*Metrics, error) {
	m := &Metrics{LastUpdated: time.Now()}
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&m.Total, s.db.Model(&database.Incident{})},
		{&m.Published, s.db.Model(&database.Incident{}).Where("status IN ?", database.FeedVisibleStatuses)},
		{&m.InReview, s.db.Model(&database.Incident{}).Where("status = ?", database.IncidentStatusInReview)},
		{&m.Rejected, s.db.Model(&database.Incident{}).Where("status = ?", database.IncidentStatusRejected)},
		{&m.Pending, s.db.Model(&database.Incident{}).Where("status = ?", database.IncidentStatusPending)},
		{&m.NeedsAttention, s.db.Model(&database.Incident{}).Where("needs_attention = ?", true)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return m, nil
}
