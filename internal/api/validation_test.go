package api

import (
	"testing"
)

func TestValidate_ValidDecision(t *testing.T) {
	lat, lon := 55.75, 37.61
	req := ReviewDecisionRequest{
		Note:         "confirmed against street camera",
		CorrectedLat: &lat,
		CorrectedLon: &lon,
	}
	if errs := Validate(req); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_InvalidLatitude(t *testing.T) {
	lat := 91.0
	req := ReviewDecisionRequest{CorrectedLat: &lat}
	errs := Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["corrected_lat"] != "must be a valid latitude" {
		t.Errorf("corrected_lat error = %q, want %q", errs["corrected_lat"], "must be a valid latitude")
	}
}

func TestValidate_BulkMissingAction(t *testing.T) {
	req := BulkReviewRequest{UUIDs: []string{"abc"}}
	errs := Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["action"] != "is required" {
		t.Errorf("action error = %q, want %q", errs["action"], "is required")
	}
}

func TestValidate_BulkInvalidAction(t *testing.T) {
	req := BulkReviewRequest{Action: "publish", UUIDs: []string{"abc"}}
	errs := Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["action"] != "must be one of: approve reject" {
		t.Errorf("action error = %q, want %q", errs["action"], "must be one of: approve reject")
	}
}

func TestValidate_BulkEmptyUUIDs(t *testing.T) {
	req := BulkReviewRequest{Action: "approve", UUIDs: []string{}}
	errs := Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["uuids"]; !ok {
		t.Errorf("expected error for empty uuids, got %v", errs)
	}
}

func TestValidate_OmitsEmptyOptional(t *testing.T) {
	req := ReviewDecisionRequest{}
	if errs := Validate(req); errs != nil {
		t.Errorf("expected no errors for empty optional fields, got %v", errs)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Note", "note"},
		{"CorrectedLat", "corrected_lat"},
		{"UUIDs", "uuids"},
		{"UUID", "uuid"},
		{"OCRText", "ocr_text"},
		{"GeoLat", "geo_lat"},
		{"simple", "simple"},
		{"", ""},
	}

	for _, tt := range tests {
		got := toSnakeCase(tt.input)
		if got != tt.expected {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
