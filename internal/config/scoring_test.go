package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScoring_Defaults(t *testing.T) {
	s, err := LoadScoring("")
	if err != nil {
		t.Fatalf("LoadScoring: %v", err)
	}
	if s.Router.DetectionWeight != 0.5 || s.Router.GeoWeight != 0.3 || s.Router.SeverityWeight != 0.2 {
		t.Errorf("unexpected router weights: %+v", s.Router)
	}
	if s.Router.HighThreshold != 0.75 || s.Router.LowThreshold != 0.35 {
		t.Errorf("unexpected router thresholds: %+v", s.Router)
	}
	if s.Fusion.AgreementEpsilonMeters != 150 {
		t.Errorf("unexpected agreement epsilon: %v", s.Fusion.AgreementEpsilonMeters)
	}
	if s.SeverityWeights["overturned_vehicle"] != 1.0 {
		t.Errorf("unexpected severity weight for overturned_vehicle: %v", s.SeverityWeights["overturned_vehicle"])
	}
}

func TestLoadScoring_PartialOverrideKeepsDefaults(t *testing.T) {
	path := writeScoringFile(t, `
router:
  high_threshold: 0.9
severity_weights:
  overturned_vehicle: 0.95
`)

	s, err := LoadScoring(path)
	if err != nil {
		t.Fatalf("LoadScoring: %v", err)
	}
	if s.Router.HighThreshold != 0.9 {
		t.Errorf("high threshold not overridden: %v", s.Router.HighThreshold)
	}
	// Untouched fields keep compiled-in values.
	if s.Router.DetectionWeight != 0.5 {
		t.Errorf("detection weight lost its default: %v", s.Router.DetectionWeight)
	}
	if s.Fusion.DisagreementPenalty != 0.5 {
		t.Errorf("fusion defaults lost: %v", s.Fusion.DisagreementPenalty)
	}
	if s.SeverityWeights["overturned_vehicle"] != 0.95 {
		t.Errorf("severity weight not overridden: %v", s.SeverityWeights["overturned_vehicle"])
	}
}

func TestLoadScoring_InvertedThresholdsRejected(t *testing.T) {
	path := writeScoringFile(t, `
router:
  high_threshold: 0.3
  low_threshold: 0.7
`)

	if _, err := LoadScoring(path); err == nil {
		t.Fatal("expected error for low_threshold above high_threshold")
	}
}

func TestLoadScoring_MissingFile(t *testing.T) {
	if _, err := LoadScoring(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadScoring_MalformedYAML(t *testing.T) {
	path := writeScoringFile(t, "router: [not a mapping")
	if _, err := LoadScoring(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func writeScoringFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write scoring file: %v", err)
	}
	return path
}
