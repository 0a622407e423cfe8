package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// IncidentStatus represents the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentStatusPending       IncidentStatus = "pending"
	IncidentStatusAutoPublished IncidentStatus = "auto_published"
	IncidentStatusInReview      IncidentStatus = "in_review"
	IncidentStatusApproved      IncidentStatus = "approved"
	IncidentStatusRejected      IncidentStatus = "rejected"
)

// Terminal returns true for states a reviewer can only leave via reopen
func (s IncidentStatus) Terminal() bool {
	return s == IncidentStatusApproved || s == IncidentStatusRejected
}

// FeedVisibleStatuses are the only statuses the public feed may serve.
// pending and in_review incidents must never appear there.
var FeedVisibleStatuses = []IncidentStatus{
	IncidentStatusAutoPublished,
	IncidentStatusApproved,
}

// Incident is an accident candidate moving through the analysis pipeline.
// RedactedImagePath is set only after PII redaction completes; the public
// feed never references RawImagePath. Duplicate submissions never create
// incidents; they bump DuplicateCount on the incident they resolved to.
type Incident struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UUID       string `gorm:"uniqueIndex;not null" json:"uuid"`
	Source     string `gorm:"not null;index" json:"source"` // "manual" or "scraper"
	SourceRef  string `gorm:"index" json:"source_ref"`      // post URL, upload filename, etc.
	SourceMeta JSONB  `gorm:"type:jsonb" json:"source_meta,omitempty"`

	RawImagePath      string `json:"-"` // private artifact, reviewer-gated
	RedactedImagePath string `json:"redacted_image_path,omitempty"`
	ImageHash         string `gorm:"index" json:"image_hash"`

	// Duplicate sightings of this incident's image. Repeated submissions
	// of the same scene are themselves a signal reviewers care about.
	DuplicateCount  int        `json:"duplicate_count"`
	LastDuplicateAt *time.Time `json:"last_duplicate_at,omitempty"`

	OCRText string `gorm:"type:text" json:"ocr_text,omitempty"`

	GeoLat        *float64 `json:"geo_lat,omitempty"`
	GeoLon        *float64 `json:"geo_lon,omitempty"`
	GeoConfidence float64  `json:"geo_confidence"`
	GeoSource     string   `gorm:"type:varchar(32)" json:"geo_source,omitempty"` // "ocr", "visual", "fused", "reviewer"
	GeoMismatch   bool     `json:"geo_mismatch"`

	Severity float64 `json:"severity"`
	Score    float64 `json:"score"`

	Status IncidentStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`

	Degraded        bool   `json:"degraded"`      // one analysis signal permanently failed
	PIIUncertain    bool   `json:"pii_uncertain"` // low-confidence redaction, forces review
	NeedsAttention  bool   `gorm:"index" json:"needs_attention"`
	AttentionReason string `gorm:"type:text" json:"attention_reason,omitempty"`

	Detections []Detection `gorm:"foreignKey:IncidentID" json:"detections,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Detection is a single detector result, owned by its incident.
// Coordinates are normalized to [0,1] as fractions of image size.
type Detection struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	IncidentID uint    `gorm:"not null;index" json:"incident_id"`
	Position   int     `gorm:"not null" json:"position"` // preserves detector ordering
	Class      string  `gorm:"type:varchar(64);not null" json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// IsPII reports whether this detection class must be redacted before
// the image can be served publicly.
func (d Detection) IsPII() bool {
	return d.Class == "face" || d.Class == "plate"
}

// DedupEntry persists one perceptual hash so the in-memory index can be
// rebuilt on restart. Rows older than the retention window are evicted.
type DedupEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Hash         string    `gorm:"type:varchar(16);not null;index" json:"hash"` // 64-bit pHash, hex
	IncidentUUID string    `gorm:"not null;index" json:"incident_uuid"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// ReviewAction is one record of the append-only audit trail. It is only
// ever created - there is no update or delete path anywhere.
type ReviewAction struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	IncidentUUID string         `gorm:"not null;index" json:"incident_uuid"`
	Actor        string         `gorm:"type:varchar(128);not null" json:"actor"`
	Action       string         `gorm:"type:varchar(32);not null" json:"action"` // route, approve, reject, reopen
	FromStatus   IncidentStatus `gorm:"type:varchar(32);not null" json:"from_status"`
	ToStatus     IncidentStatus `gorm:"type:varchar(32);not null" json:"to_status"`
	Note         string         `gorm:"type:text" json:"note,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName overrides for explicit table naming
func (Incident) TableName() string {
	return "incidents"
}

func (Detection) TableName() string {
	return "detections"
}

func (DedupEntry) TableName() string {
	return "dedup_entries"
}

func (ReviewAction) TableName() string {
	return "review_actions"
}
