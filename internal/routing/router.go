// Package routing holds the deterministic decision function that maps
// fused analysis signals to a publish/review/reject outcome.
package routing

// Outcome is the routing decision for a processed incident.
type Outcome string

const (
	OutcomeAutoPublish Outcome = "auto_published"
	OutcomeReview      Outcome = "in_review"
	OutcomeReject      Outcome = "rejected"
)

// Inputs are the complete signal tuple the router decides on. The router
// is a pure function of this struct: no clock, no randomness, no IO.
type Inputs struct {
	DetectionScore float64 // best accident-relevant detection confidence
	GeoConfidence  float64 // fused geolocation confidence
	Severity       float64 // class-weighted severity heuristic
	PIIUncertain   bool    // low-confidence PII redaction
	Degraded       bool    // one analysis signal permanently failed
	GeoMismatch    bool    // location signals disagreed beyond epsilon
}

// Policy holds the configurable weights and dual thresholds.
type Policy struct {
	DetectionWeight float64
	GeoWeight       float64
	SeverityWeight  float64
	High            float64
	Low             float64
}

// Score computes the weighted-sum confidence in [0,1].
func Score(in Inputs, p Policy) float64 {
	total := p.DetectionWeight + p.GeoWeight + p.SeverityWeight
	if total == 0 {
		return 0
	}
	s := (in.DetectionScore*p.DetectionWeight +
		in.GeoConfidence*p.GeoWeight +
		in.Severity*p.SeverityWeight) / total
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Route maps the inputs to an outcome. Safety overrides come first: an
// uncertain PII redaction, a degraded analysis, or a location mismatch
// can never auto-publish, whatever the score says.
func Route(in Inputs, p Policy) (Outcome, float64) {
	score := Score(in, p)

	if in.PIIUncertain || in.GeoMismatch {
		return OutcomeReview, score
	}

	switch {
	case score >= p.High:
		if in.Degraded {
			// Degraded incidents are steered to a human even when the
			// surviving signal scores high.
			return OutcomeReview, score
		}
		return OutcomeAutoPublish, score
	case score >= p.Low:
		return OutcomeReview, score
	default:
		if in.Degraded {
			// A missing signal should not silently reject a candidate.
			return OutcomeReview, score
		}
		return OutcomeReject, score
	}
}
