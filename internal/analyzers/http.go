package analyzers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpAdapter is the shared plumbing of the HTTP collaborator clients.
type httpAdapter struct {
	baseURL    string
	httpClient *http.Client
}

func newHTTPAdapter(baseURL string, timeout time.Duration) httpAdapter {
	return httpAdapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// postJSON sends a request and decodes the response, translating transport
// and status failures into the error taxonomy.
func (a httpAdapter) postJSON(ctx context.Context, op, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return classifyStatus(op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// HTTPDetector calls the external detection service.
type HTTPDetector struct {
	httpAdapter
}

// NewHTTPDetector creates a detection client with a per-call timeout.
func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{newHTTPAdapter(baseURL, timeout)}
}

type detectRequest struct {
	Image string `json:"image"` // base64
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	var resp detectResponse
	req := detectRequest{Image: base64.StdEncoding.EncodeToString(image)}
	if err := d.postJSON(ctx, "detect", "/v1/detect", req, &resp); err != nil {
		return nil, err
	}
	return resp.Detections, nil
}

// HTTPOCR calls the external OCR service.
type HTTPOCR struct {
	httpAdapter
}

// NewHTTPOCR creates an OCR client with a per-call timeout.
func NewHTTPOCR(baseURL string, timeout time.Duration) *HTTPOCR {
	return &HTTPOCR{newHTTPAdapter(baseURL, timeout)}
}

type ocrRequest struct {
	Image string `json:"image"` // base64
}

type ocrResponse struct {
	Spans []TextSpan `json:"spans"`
}

// Extract implements OCR.
func (o *HTTPOCR) Extract(ctx context.Context, image []byte) ([]TextSpan, error) {
	var resp ocrResponse
	req := ocrRequest{Image: base64.StdEncoding.EncodeToString(image)}
	if err := o.postJSON(ctx, "ocr", "/v1/extract", req, &resp); err != nil {
		return nil, err
	}
	return resp.Spans, nil
}

// HTTPGeocoder calls the external geocoding service.
type HTTPGeocoder struct {
	httpAdapter
}

// NewHTTPGeocoder creates a geocoding client with a per-call timeout.
func NewHTTPGeocoder(baseURL string, timeout time.Duration) *HTTPGeocoder {
	return &HTTPGeocoder{newHTTPAdapter(baseURL, timeout)}
}

type geocodeRequest struct {
	Text string `json:"text"`
}

type geocodeResponse struct {
	Candidates []GeoCandidate `json:"candidates"`
}

// Geocode implements Geocoder.
func (g *HTTPGeocoder) Geocode(ctx context.Context, text string) ([]GeoCandidate, error) {
	var resp geocodeResponse
	if err := g.postJSON(ctx, "geocode", "/v1/geocode", geocodeRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// HTTPPlaceMatcher calls the optional visual place-matching service.
type HTTPPlaceMatcher struct {
	httpAdapter
}

// NewHTTPPlaceMatcher creates a place-matching client with a per-call timeout.
func NewHTTPPlaceMatcher(baseURL string, timeout time.Duration) *HTTPPlaceMatcher {
	return &HTTPPlaceMatcher{newHTTPAdapter(baseURL, timeout)}
}

type matchRequest struct {
	Image string `json:"image"` // base64
}

type matchResponse struct {
	Match *PlaceMatch `json:"match"`
}

// Match implements PlaceMatcher. A null match in the response means the
// image resembles no known landmark.
func (p *HTTPPlaceMatcher) Match(ctx context.Context, image []byte) (*PlaceMatch, error) {
	var resp matchResponse
	req := matchRequest{Image: base64.StdEncoding.EncodeToString(image)}
	if err := p.postJSON(ctx, "placematch", "/v1/match", req, &resp); err != nil {
		return nil, err
	}
	return resp.Match, nil
}
