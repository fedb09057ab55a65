package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "DATA_PATH", "METRICS_PORT", "THRESHOLDS_FILE", "CONFIG_STORE_URL",
		"REST_TIMEOUT", "ASSESS_INTERVAL", "EVENT_WORKERS", "RECENT_EXAMS", "ATTEMPT_CAP",
		"FAIL_THRESHOLD", "ML_RED_CUTOFF", "ML_YELLOW_CUTOFF", "PROMOTION_TOLERANCE",
		"HOLDOUT_FRACTION", "TRAINING_SEED", "EPOCHS", "LEARNING_RATE", "L2_PENALTY",
		"FOREST_TREES", "FOREST_MAX_DEPTH", "FOREST_MIN_LEAF",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_EnvDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.MetricsPort != 8080 {
		t.Errorf("metrics port = %d, want 8080", s.MetricsPort)
	}
	if s.AssessInterval != time.Hour {
		t.Errorf("assess interval = %v, want 1h", s.AssessInterval)
	}
	if s.RecentExams != 6 || s.AttemptCap != 10 || s.FailThreshold != 40 {
		t.Errorf("feature options = %d/%d/%v", s.RecentExams, s.AttemptCap, s.FailThreshold)
	}
	if s.MLRedCutoff != 0.7 || s.MLYellowCutoff != 0.4 {
		t.Errorf("ml cutoffs = %v/%v, want 0.7/0.4", s.MLRedCutoff, s.MLYellowCutoff)
	}
	if s.TrainingSeed != 42 {
		t.Errorf("seed = %d, want 42", s.TrainingSeed)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRICS_PORT", "9100")
	t.Setenv("ASSESS_INTERVAL", "30m")
	t.Setenv("ML_RED_CUTOFF", "0.8")
	t.Setenv("DATA_PATH", "/tmp/engine-data")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.MetricsPort != 9100 {
		t.Errorf("metrics port = %d, want 9100", s.MetricsPort)
	}
	if s.AssessInterval != 30*time.Minute {
		t.Errorf("assess interval = %v, want 30m", s.AssessInterval)
	}
	if s.MLRedCutoff != 0.8 {
		t.Errorf("red cutoff = %v, want 0.8", s.MLRedCutoff)
	}
	if s.DataPath != "/tmp/engine-data" {
		t.Errorf("data path = %q", s.DataPath)
	}
}

func TestLoad_InvalidEnvValueRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("ML_YELLOW_CUTOFF", "0.9") // above the red cutoff

	if _, err := Load(); err == nil {
		t.Fatal("expected validation failure for inverted ML cutoffs")
	}
}

func TestLoad_FromYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `system:
  dataPath: /var/lib/edutrack
  metricsPort: 9200
  restTimeout: 2s
thresholds:
  file: thresholds.yaml
assessment:
  interval: 15m
  eventWorkers: 2
  mlRedCutoff: 0.75
  mlYellowCutoff: 0.45
features:
  recentExams: 4
  attemptCap: 8
  failThreshold: 35
training:
  promotionTolerance: 0.02
  holdoutFraction: 0.25
  seed: 7
  trees: 10
  maxDepth: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.DataPath != "/var/lib/edutrack" {
		t.Errorf("data path = %q", s.DataPath)
	}
	if s.MetricsPort != 9200 {
		t.Errorf("metrics port = %d, want 9200", s.MetricsPort)
	}
	if s.RESTTimeout != 2*time.Second {
		t.Errorf("rest timeout = %v, want 2s", s.RESTTimeout)
	}
	if s.AssessInterval != 15*time.Minute {
		t.Errorf("assess interval = %v, want 15m", s.AssessInterval)
	}
	if s.EventWorkers != 2 {
		t.Errorf("event workers = %d, want 2", s.EventWorkers)
	}
	if s.MLRedCutoff != 0.75 || s.MLYellowCutoff != 0.45 {
		t.Errorf("ml cutoffs = %v/%v", s.MLRedCutoff, s.MLYellowCutoff)
	}
	if s.RecentExams != 4 || s.AttemptCap != 8 || s.FailThreshold != 35 {
		t.Errorf("feature options = %d/%d/%v", s.RecentExams, s.AttemptCap, s.FailThreshold)
	}
	if s.TrainingSeed != 7 || s.Trees != 10 || s.MaxDepth != 3 {
		t.Errorf("training options = %d/%d/%d", s.TrainingSeed, s.Trees, s.MaxDepth)
	}
	// Unset training fields keep their defaults.
	if s.Epochs != 500 {
		t.Errorf("epochs = %d, want default 500", s.Epochs)
	}
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("system:\n  metricsPort: 9200\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("METRICS_PORT", "9300")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.MetricsPort != 9300 {
		t.Errorf("metrics port = %d, env should override file", s.MetricsPort)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateSettings(t *testing.T) {
	clearEnv(t)

	base, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad port", func(s *Settings) { s.MetricsPort = 0 }},
		{"no workers", func(s *Settings) { s.EventWorkers = 0 }},
		{"cutoff above one", func(s *Settings) { s.MLRedCutoff = 1.5 }},
		{"inverted cutoffs", func(s *Settings) { s.MLYellowCutoff = s.MLRedCutoff }},
		{"holdout fraction one", func(s *Settings) { s.HoldoutFraction = 1 }},
		{"negative l2", func(s *Settings) { s.L2 = -0.1 }},
		{"zero trees", func(s *Settings) { s.Trees = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			if err := validateSettings(&s); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := validateSettings(&base); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
