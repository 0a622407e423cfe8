// Package analyzers holds the collaborator boundaries of the pipeline:
// detection, OCR, geocoding and visual place matching. Each collaborator
// is a black box behind a small interface; the HTTP adapters here map its
// failures onto the transient/permanent taxonomy the job queue retries on.
package analyzers

import "context"

// Detection is one detector result with a normalized bounding box.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// TextSpan is one OCR result: extracted text with its bounding region.
type TextSpan struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// GeoCandidate is a geocoded coordinate for a piece of text.
type GeoCandidate struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"`
}

// PlaceMatch is a visual place-recognition hit.
type PlaceMatch struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Similarity float64 `json:"similarity"`
}

// Detector finds accident-relevant objects and PII regions in an image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// OCR extracts text spans from an image.
type OCR interface {
	Extract(ctx context.Context, image []byte) ([]TextSpan, error)
}

// Geocoder resolves free text to candidate coordinates. An empty slice
// means the text did not geocode; that is not an error.
type Geocoder interface {
	Geocode(ctx context.Context, text string) ([]GeoCandidate, error)
}

// PlaceMatcher matches an image against a landmark database. A nil result
// means no match; the signal is optional end to end.
type PlaceMatcher interface {
	Match(ctx context.Context, image []byte) (*PlaceMatch, error)
}
