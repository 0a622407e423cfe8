package testhelpers

import (
	"context"
	"sync"

	"github.com/roadwatch/roadwatch/internal/analyzers"
)

// StubDetector implements analyzers.Detector with canned results.
type StubDetector struct {
	mu         sync.Mutex
	Detections []analyzers.Detection
	Err        error
	// Errs, when non-empty, is consumed one error per call before
	// falling back to Err. Used to simulate transient failures that
	// recover on retry.
	Errs  []error
	Calls int
}

func (s *StubDetector) Detect(ctx context.Context, image []byte) ([]analyzers.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if len(s.Errs) > 0 {
		err := s.Errs[0]
		s.Errs = s.Errs[1:]
		if err != nil {
			return nil, err
		}
	} else if s.Err != nil {
		return nil, s.Err
	}
	return s.Detections, nil
}

// CallCount returns how many times Detect ran.
func (s *StubDetector) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// StubOCR implements analyzers.OCR with canned results.
type StubOCR struct {
	mu    sync.Mutex
	Spans []analyzers.TextSpan
	Err   error
	Calls int
}

func (s *StubOCR) Extract(ctx context.Context, image []byte) ([]analyzers.TextSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Spans, nil
}

// StubGeocoder implements analyzers.Geocoder. Results maps input text to
// candidates; unmapped text geocodes to nothing.
type StubGeocoder struct {
	mu      sync.Mutex
	Results map[string][]analyzers.GeoCandidate
	Err     error
	Queries []string
}

func (s *StubGeocoder) Geocode(ctx context.Context, text string) ([]analyzers.GeoCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, text)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Results[text], nil
}

// StubPlaceMatcher implements analyzers.PlaceMatcher with a fixed match.
type StubPlaceMatcher struct {
	Result *analyzers.PlaceMatch
	Err    error
}

func (s *StubPlaceMatcher) Match(ctx context.Context, image []byte) (*analyzers.PlaceMatch, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}
