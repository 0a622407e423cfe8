// Package fusion combines the OCR-geocoding signal and the optional
// visual place-matching signal into one location estimate. It is pure:
// identical inputs always produce the identical result.
package fusion

import (
	"math"

	"github.com/roadwatch/roadwatch/internal/analyzers"
)

// Thresholds are the fusion tuning constants, loaded from config.
type Thresholds struct {
	OCRConfidence    float64 // minimum geocode confidence to trust OCR
	VisualSimilarity float64 // minimum similarity to trust the visual match
	EpsilonMeters    float64 // agreement distance between the two signals
	AgreementBoost   float64 // confidence bonus when signals agree
	DisagreePenalty  float64 // multiplicative confidence cut on mismatch
}

// Source identifies which signal produced the fused coordinate.
const (
	SourceOCR    = "ocr"
	SourceVisual = "visual"
	SourceFused  = "fused"
)

// Result is the fused location estimate. Resolved=false (confidence 0)
// forces the incident into review. Mismatch means the two signals
// disagreed beyond epsilon; that also forces review regardless of score.
type Result struct {
	Lat        float64
	Lon        float64
	Confidence float64
	Source     string
	Resolved   bool
	Mismatch   bool
}

// Fuse applies the fusion rule. Either input may be nil.
func Fuse(ocr *analyzers.GeoCandidate, visual *analyzers.PlaceMatch, t Thresholds) Result {
	ocrTrusted := ocr != nil && ocr.Confidence >= t.OCRConfidence
	visTrusted := visual != nil && visual.Similarity >= t.VisualSimilarity

	if ocr != nil && visual != nil {
		dist := HaversineMeters(ocr.Lat, ocr.Lon, visual.Lat, visual.Lon)
		if dist <= t.EpsilonMeters {
			// Agreement: confidence-weighted average of both coordinates,
			// boosted and bounded at 1. Two signals that corroborate each
			// other resolve even when neither clears its own trust
			// threshold; the agreement is treated as evidence in itself.
			wa, wb := ocr.Confidence, visual.Similarity
			if wa+wb == 0 {
				return Result{}
			}
			conf := (wa*wa+wb*wb)/(wa+wb) + t.AgreementBoost
			if conf > 1 {
				conf = 1
			}
			return Result{
				Lat:        (ocr.Lat*wa + visual.Lat*wb) / (wa + wb),
				Lon:        (ocr.Lon*wa + visual.Lon*wb) / (wa + wb),
				Confidence: conf,
				Source:     SourceFused,
				Resolved:   true,
			}
		}

		// Disagreement beyond epsilon: keep the preferred signal with a
		// reduced confidence and flag for manual location correction.
		switch {
		case ocrTrusted:
			return Result{
				Lat:        ocr.Lat,
				Lon:        ocr.Lon,
				Confidence: ocr.Confidence * (1 - t.DisagreePenalty),
				Source:     SourceOCR,
				Resolved:   true,
				Mismatch:   true,
			}
		case visTrusted:
			return Result{
				Lat:        visual.Lat,
				Lon:        visual.Lon,
				Confidence: visual.Similarity * (1 - t.DisagreePenalty),
				Source:     SourceVisual,
				Resolved:   true,
				Mismatch:   true,
			}
		default:
			return Result{Mismatch: true}
		}
	}

	if ocrTrusted {
		return Result{
			Lat:        ocr.Lat,
			Lon:        ocr.Lon,
			Confidence: ocr.Confidence,
			Source:     SourceOCR,
			Resolved:   true,
		}
	}
	if visTrusted {
		return Result{
			Lat:        visual.Lat,
			Lon:        visual.Lon,
			Confidence: visual.Similarity,
			Source:     SourceVisual,
			Resolved:   true,
		}
	}

	// Unresolved: confidence stays 0, which forces review downstream.
	return Result{}
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
