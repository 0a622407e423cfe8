package testhelpers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
)

// IncidentBuilder builds Incident instances for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.Incident{
			UUID:         uuid.NewString(),
			Source:       "manual",
			SourceRef:    "test-upload.jpg",
			RawImagePath: "/data/uploads/test.jpg",
			ImageHash:    "00000000deadbeef",
			Status:       database.IncidentStatusPending,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		},
	}
}

// WithUUID sets the incident UUID
func (b *IncidentBuilder) WithUUID(id string) *IncidentBuilder {
	b.incident.UUID = id
	return b
}

// WithSource sets the source
func (b *IncidentBuilder) WithSource(source string) *IncidentBuilder {
	b.incident.Source = source
	return b
}

// WithStatus sets the status
func (b *IncidentBuilder) WithStatus(status database.IncidentStatus) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// WithHash sets the perceptual hash
func (b *IncidentBuilder) WithHash(hash string) *IncidentBuilder {
	b.incident.ImageHash = hash
	return b
}

// WithLocation sets fused coordinates
func (b *IncidentBuilder) WithLocation(lat, lon, confidence float64) *IncidentBuilder {
	b.incident.GeoLat = &lat
	b.incident.GeoLon = &lon
	b.incident.GeoConfidence = confidence
	b.incident.GeoSource = "fused"
	return b
}

// WithScore sets the routing score and severity
func (b *IncidentBuilder) WithScore(score, severity float64) *IncidentBuilder {
	b.incident.Score = score
	b.incident.Severity = severity
	return b
}

// WithOCRText sets extracted text
func (b *IncidentBuilder) WithOCRText(text string) *IncidentBuilder {
	b.incident.OCRText = text
	return b
}

// WithRedactedImage sets the public artifact path
func (b *IncidentBuilder) WithRedactedImage(path string) *IncidentBuilder {
	b.incident.RedactedImagePath = path
	return b
}

// WithDuplicates records prior duplicate sightings of the image
func (b *IncidentBuilder) WithDuplicates(count int, last time.Time) *IncidentBuilder {
	b.incident.DuplicateCount = count
	b.incident.LastDuplicateAt = &last
	return b
}

// NeedsAttention flags the incident for operator follow-up
func (b *IncidentBuilder) NeedsAttention(reason string) *IncidentBuilder {
	b.incident.NeedsAttention = true
	b.incident.AttentionReason = reason
	return b
}

// CreatedAt sets the creation time
func (b *IncidentBuilder) CreatedAt(at time.Time) *IncidentBuilder {
	b.incident.CreatedAt = at
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}

// Create builds the incident and persists it
func (b *IncidentBuilder) Create(t *testing.T, db *gorm.DB) database.Incident {
	t.Helper()
	incident := b.Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create test incident: %v", err)
	}
	return incident
}

// DetectionBuilder builds Detection instances for testing
type DetectionBuilder struct {
	detection database.Detection
}

// NewDetectionBuilder creates a new detection builder with defaults
func NewDetectionBuilder() *DetectionBuilder {
	return &DetectionBuilder{
		detection: database.Detection{
			Class:      "vehicle_damage",
			Confidence: 0.9,
			X:          0.1, Y: 0.1, W: 0.3, H: 0.3,
		},
	}
}

// ForIncident sets the owning incident
func (b *DetectionBuilder) ForIncident(id uint) *DetectionBuilder {
	b.detection.IncidentID = id
	return b
}

// WithClass sets the detection class
func (b *DetectionBuilder) WithClass(class string) *DetectionBuilder {
	b.detection.Class = class
	return b
}

// WithConfidence sets the confidence
func (b *DetectionBuilder) WithConfidence(c float64) *DetectionBuilder {
	b.detection.Confidence = c
	return b
}

// WithBox sets the normalized bounding box
func (b *DetectionBuilder) WithBox(x, y, w, h float64) *DetectionBuilder {
	b.detection.X, b.detection.Y, b.detection.W, b.detection.H = x, y, w, h
	return b
}

// AtPosition sets the detector ordering position
func (b *DetectionBuilder) AtPosition(pos int) *DetectionBuilder {
	b.detection.Position = pos
	return b
}

// Build returns the constructed detection
func (b *DetectionBuilder) Build() database.Detection {
	return b.detection
}
