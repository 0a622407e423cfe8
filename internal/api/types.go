package api

import (
	"time"

	"github.com/roadwatch/roadwatch/internal/database"
)

// ========== Submission Types ==========

// SubmitResponse is the response body for POST /api/submit.
type SubmitResponse struct {
	Accepted    bool   `json:"accepted"`
	UUID        string `json:"uuid,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Distance    int    `json:"distance,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ========== Review Types ==========

// ReviewDecisionRequest is the request body for review approve/reject/reopen.
type ReviewDecisionRequest struct {
	Note         string   `json:"note" validate:"omitempty,max=2048"`
	CorrectedLat *float64 `json:"corrected_lat" validate:"omitempty,latitude"`
	CorrectedLon *float64 `json:"corrected_lon" validate:"omitempty,longitude"`
}

// BulkReviewRequest is the request body for POST /api/review/bulk.
type BulkReviewRequest struct {
	Action string   `json:"action" validate:"required,oneof=approve reject"`
	UUIDs  []string `json:"uuids" validate:"required,min=1,max=100"`
	Note   string   `json:"note" validate:"omitempty,max=2048"`
}

// BulkReviewItemResult reports the outcome for one incident of a bulk request.
type BulkReviewItemResult struct {
	UUID  string `json:"uuid"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ========== Incident Types ==========

// IncidentListItem is a compact representation of an incident for the
// operator list view. It omits detections and OCR text to keep list
// responses small.
type IncidentListItem struct {
	UUID           string                  `json:"uuid"`
	Source         string                  `json:"source"`
	SourceRef      string                  `json:"source_ref,omitempty"`
	Status         database.IncidentStatus `json:"status"`
	Score          float64                 `json:"score"`
	Severity       float64                 `json:"severity"`
	GeoLat         *float64                `json:"geo_lat,omitempty"`
	GeoLon         *float64                `json:"geo_lon,omitempty"`
	GeoConfidence  float64                 `json:"geo_confidence"`
	GeoMismatch    bool                    `json:"geo_mismatch"`
	Degraded       bool                    `json:"degraded"`
	PIIUncertain   bool                    `json:"pii_uncertain"`
	NeedsAttention bool                    `json:"needs_attention"`
	ProcessedAt    *time.Time              `json:"processed_at,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}
