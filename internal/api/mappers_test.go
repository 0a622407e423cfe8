package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/database"
)

func TestIncidentToListItem(t *testing.T) {
	lat, lon := 55.75, 37.61
	now := time.Now()
	inc := database.Incident{
		UUID:          "inc-1",
		Source:        "scraper",
		SourceRef:     "https://example.com/post/42",
		RawImagePath:  "/data/uploads/inc-1.jpg",
		OCRText:       "Ленинский проспект 42",
		Status:        database.IncidentStatusInReview,
		Score:         0.61,
		Severity:      0.8,
		GeoLat:        &lat,
		GeoLon:        &lon,
		GeoConfidence: 0.7,
		Degraded:      true,
		CreatedAt:     now,
	}

	item := IncidentToListItem(inc)

	if item.UUID != "inc-1" {
		t.Errorf("uuid = %q, want %q", item.UUID, "inc-1")
	}
	if item.Status != database.IncidentStatusInReview {
		t.Errorf("status = %q, want %q", item.Status, database.IncidentStatusInReview)
	}
	if item.GeoLat == nil || *item.GeoLat != lat {
		t.Errorf("geo_lat = %v, want %v", item.GeoLat, lat)
	}
	if !item.Degraded {
		t.Error("degraded flag lost in mapping")
	}
}

// The list item must never leak the raw artifact path or OCR text.
func TestIncidentListItem_OmitsPrivateFields(t *testing.T) {
	inc := database.Incident{
		UUID:         "inc-2",
		Source:       "manual",
		RawImagePath: "/data/uploads/inc-2.jpg",
		OCRText:      "license ABC123",
		Status:       database.IncidentStatusPending,
	}

	data, err := json.Marshal(IncidentToListItem(inc))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)

	if strings.Contains(body, "uploads") {
		t.Errorf("list item leaks raw image path: %s", body)
	}
	if strings.Contains(body, "ABC123") {
		t.Errorf("list item leaks OCR text: %s", body)
	}
}

func TestIncidentsToListItems(t *testing.T) {
	incidents := []database.Incident{
		{UUID: "a", Status: database.IncidentStatusPending},
		{UUID: "b", Status: database.IncidentStatusApproved},
	}

	items := IncidentsToListItems(incidents)
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].UUID != "a" || items[1].UUID != "b" {
		t.Errorf("order not preserved: %q, %q", items[0].UUID, items[1].UUID)
	}
}
