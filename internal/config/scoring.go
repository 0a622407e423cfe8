package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringConfig holds the tunable constants of the analysis pipeline:
// router weights and thresholds, fusion thresholds, severity class weights
// and redaction parameters. All of it is configuration, not behavior.
type ScoringConfig struct {
	Router struct {
		DetectionWeight float64 `yaml:"detection_weight"`
		GeoWeight       float64 `yaml:"geo_weight"`
		SeverityWeight  float64 `yaml:"severity_weight"`
		HighThreshold   float64 `yaml:"high_threshold"`
		LowThreshold    float64 `yaml:"low_threshold"`
	} `yaml:"router"`

	Fusion struct {
		OCRConfidenceThreshold    float64 `yaml:"ocr_confidence_threshold"`
		VisualSimilarityThreshold float64 `yaml:"visual_similarity_threshold"`
		AgreementEpsilonMeters    float64 `yaml:"agreement_epsilon_meters"`
		AgreementBoost            float64 `yaml:"agreement_boost"`
		DisagreementPenalty       float64 `yaml:"disagreement_penalty"`
	} `yaml:"fusion"`

	Redaction struct {
		PaddingFraction     float64 `yaml:"padding_fraction"`
		BlurSigma           float64 `yaml:"blur_sigma"`
		MinRegionConfidence float64 `yaml:"min_region_confidence"`
	} `yaml:"redaction"`

	// SeverityWeights maps detection classes to severity contributions.
	SeverityWeights map[string]float64 `yaml:"severity_weights"`
}

// DefaultScoring returns the compiled-in scoring constants.
func DefaultScoring() *ScoringConfig {
	s := &ScoringConfig{}
	s.Router.DetectionWeight = 0.5
	s.Router.GeoWeight = 0.3
	s.Router.SeverityWeight = 0.2
	s.Router.HighThreshold = 0.75
	s.Router.LowThreshold = 0.35

	s.Fusion.OCRConfidenceThreshold = 0.6
	s.Fusion.VisualSimilarityThreshold = 0.7
	s.Fusion.AgreementEpsilonMeters = 150
	s.Fusion.AgreementBoost = 0.15
	s.Fusion.DisagreementPenalty = 0.5

	s.Redaction.PaddingFraction = 0.15
	s.Redaction.BlurSigma = 12
	s.Redaction.MinRegionConfidence = 0.5

	s.SeverityWeights = map[string]float64{
		"overturned_vehicle": 1.0,
		"vehicle_damage":     0.8,
		"ambulance":          0.6,
		"police":             0.5,
		"debris":             0.4,
		"traffic_jam":        0.3,
	}
	return s
}

// LoadScoring reads the scoring config from a YAML file, falling back to
// defaults when path is empty. Fields omitted in the file keep defaults.
func LoadScoring(path string) (*ScoringConfig, error) {
	s := DefaultScoring()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse scoring config: %w", err)
	}

	if s.Router.LowThreshold > s.Router.HighThreshold {
		return nil, fmt.Errorf("scoring config: low_threshold %.2f exceeds high_threshold %.2f",
			s.Router.LowThreshold, s.Router.HighThreshold)
	}
	return s, nil
}
