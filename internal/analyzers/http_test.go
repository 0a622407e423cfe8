package analyzers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPDetector_Detect(t *testing.T) {
	image := []byte("fake-jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || string(decoded) != string(image) {
			t.Errorf("image not round-tripped through base64")
		}
		json.NewEncoder(w).Encode(detectResponse{Detections: []Detection{
			{Class: "vehicle_damage", Confidence: 0.91, X: 0.1, Y: 0.2, W: 0.3, H: 0.4},
			{Class: "license_plate", Confidence: 0.88},
		}})
	}))
	defer srv.Close()

	detector := NewHTTPDetector(srv.URL, 5*time.Second)
	detections, err := detector.Detect(context.Background(), image)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}
	if detections[0].Class != "vehicle_damage" || detections[0].Confidence != 0.91 {
		t.Errorf("unexpected first detection: %+v", detections[0])
	}
}

func TestHTTPOCR_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ocrResponse{Spans: []TextSpan{
			{Text: "проспект Мира 12", Confidence: 0.8},
		}})
	}))
	defer srv.Close()

	ocr := NewHTTPOCR(srv.URL, 5*time.Second)
	spans, err := ocr.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "проспект Мира 12" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestHTTPGeocoder_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geocodeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "Leninsky 42" {
			t.Errorf("unexpected query text %q", req.Text)
		}
		json.NewEncoder(w).Encode(geocodeResponse{Candidates: []GeoCandidate{
			{Lat: 55.75, Lon: 37.62, Confidence: 0.7},
		}})
	}))
	defer srv.Close()

	geocoder := NewHTTPGeocoder(srv.URL, 5*time.Second)
	candidates, err := geocoder.Geocode(context.Background(), "Leninsky 42")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Lat != 55.75 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func TestHTTPPlaceMatcher_NullMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"match": null}`))
	}))
	defer srv.Close()

	matcher := NewHTTPPlaceMatcher(srv.URL, 5*time.Second)
	match, err := matcher.Match(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match != nil {
		t.Errorf("expected nil match, got %+v", match)
	}
}

func TestPostJSON_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad image", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	detector := NewHTTPDetector(srv.URL, 5*time.Second)
	_, err := detector.Detect(context.Background(), []byte("img"))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if IsTransient(err) {
		t.Error("permanent error must not classify as transient")
	}
}

func TestPostJSON_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ocr := NewHTTPOCR(srv.URL, 5*time.Second)
	_, err := ocr.Extract(context.Background(), []byte("img"))
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPostJSON_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	geocoder := NewHTTPGeocoder(srv.URL, 20*time.Millisecond)
	_, err := geocoder.Geocode(context.Background(), "anywhere")
	if !IsTransient(err) {
		t.Fatalf("expected transient error on timeout, got %v", err)
	}
}

func TestPostJSON_ConnectionRefusedIsTransient(t *testing.T) {
	// A server that is already closed refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	detector := NewHTTPDetector(url, time.Second)
	_, err := detector.Detect(context.Background(), []byte("img"))
	if !IsTransient(err) {
		t.Fatalf("expected transient error on refused connection, got %v", err)
	}
}

func TestPostJSON_MalformedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	detector := NewHTTPDetector(srv.URL, 5*time.Second)
	_, err := detector.Detect(context.Background(), []byte("img"))
	if !IsTransient(err) {
		t.Fatalf("expected transient error on malformed body, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{400, true},
		{404, true},
		{422, true},
		{500, false},
		{502, false},
		{503, false},
	}
	for _, tt := range tests {
		err := classifyStatus("op", tt.status)
		if got := IsPermanent(err); got != tt.permanent {
			t.Errorf("status %d: permanent = %v, want %v", tt.status, got, tt.permanent)
		}
	}
}
