package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyConfig_Defaults(t *testing.T) {
	cfg := EmptyConfig()

	if cfg.GetFitMethod() != "lm" {
		t.Errorf("GetFitMethod() = %q, want lm", cfg.GetFitMethod())
	}
	if cfg.GetFitTolerance() != 1e-6 {
		t.Errorf("GetFitTolerance() = %g, want 1e-6", cfg.GetFitTolerance())
	}
	if cfg.GetMaxIterations() != 100 {
		t.Errorf("GetMaxIterations() = %d, want 100", cfg.GetMaxIterations())
	}
	if cfg.GetMeshAlong() != 48 || cfg.GetMeshAround() != 48 {
		t.Errorf("mesh = %dx%d, want 48x48", cfg.GetMeshAlong(), cfg.GetMeshAround())
	}
	if cfg.GetProjectionCacheSize() != 0 {
		t.Errorf("GetProjectionCacheSize() = %d, want 0", cfg.GetProjectionCacheSize())
	}
	if cfg.GetEphemerisTolerance() != time.Minute {
		t.Errorf("GetEphemerisTolerance() = %v, want 1m", cfg.GetEphemerisTolerance())
	}
	if cfg.GetKinematicsMethod() != "poly" || cfg.GetPolyOrder() != 2 {
		t.Errorf("kinematics = %s/%d, want poly/2", cfg.GetKinematicsMethod(), cfg.GetPolyOrder())
	}
	if cfg.GetMinSamplesVelocity() != 3 || cfg.GetMinSamplesAcceleration() != 4 {
		t.Errorf("min samples = %d/%d, want 3/4", cfg.GetMinSamplesVelocity(), cfg.GetMinSamplesAcceleration())
	}
	if cfg.GetGridPoints() != 120 {
		t.Errorf("GetGridPoints() = %d, want 120", cfg.GetGridPoints())
	}
	if cfg.GetSpeedUnit() != "kms" {
		t.Errorf("GetSpeedUnit() = %q, want kms", cfg.GetSpeedUnit())
	}
	if cfg.GetLogFile() != "" {
		t.Errorf("GetLogFile() = %q, want empty", cfg.GetLogFile())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestMustLoadDefaultConfig_MatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyConfig()

	if cfg.GetFitMethod() != empty.GetFitMethod() {
		t.Errorf("fit_method = %q, getter default %q", cfg.GetFitMethod(), empty.GetFitMethod())
	}
	if cfg.GetOutlineBins() != empty.GetOutlineBins() {
		t.Errorf("outline_bins = %d, getter default %d", cfg.GetOutlineBins(), empty.GetOutlineBins())
	}
	if cfg.GetMarkSigmaPx() != empty.GetMarkSigmaPx() {
		t.Errorf("mark_sigma_px = %g, getter default %g", cfg.GetMarkSigmaPx(), empty.GetMarkSigmaPx())
	}
	if cfg.GetProjectionCacheTTL() != empty.GetProjectionCacheTTL() {
		t.Errorf("projection_cache_ttl = %v, getter default %v", cfg.GetProjectionCacheTTL(), empty.GetProjectionCacheTTL())
	}
	if cfg.GetEphemerisCacheSize() != empty.GetEphemerisCacheSize() {
		t.Errorf("ephemeris_cache_size = %d, getter default %d", cfg.GetEphemerisCacheSize(), empty.GetEphemerisCacheSize())
	}
	if cfg.GetVisibilityPenaltyPx() != empty.GetVisibilityPenaltyPx() {
		t.Errorf("visibility_penalty_px = %g, getter default %g", cfg.GetVisibilityPenaltyPx(), empty.GetVisibilityPenaltyPx())
	}
	if cfg.GetLogMaxSizeMB() != empty.GetLogMaxSizeMB() || cfg.GetLogMaxBackups() != empty.GetLogMaxBackups() {
		t.Errorf("log rotation = %d/%d", cfg.GetLogMaxSizeMB(), cfg.GetLogMaxBackups())
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fit.json")

	testJSON := `{
  "fit_method": "nelder-mead",
  "max_iterations": 500,
  "projection_cache_size": 1024,
  "projection_cache_ttl": "2m",
  "kinematics_method": "spline"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetFitMethod() != "nelder-mead" {
		t.Errorf("GetFitMethod() = %q", cfg.GetFitMethod())
	}
	if cfg.GetMaxIterations() != 500 {
		t.Errorf("GetMaxIterations() = %d", cfg.GetMaxIterations())
	}
	if cfg.GetProjectionCacheSize() != 1024 || cfg.GetProjectionCacheTTL() != 2*time.Minute {
		t.Errorf("projection cache = %d/%v", cfg.GetProjectionCacheSize(), cfg.GetProjectionCacheTTL())
	}
	if cfg.GetKinematicsMethod() != "spline" {
		t.Errorf("GetKinematicsMethod() = %q", cfg.GetKinematicsMethod())
	}
	// omitted fields keep their defaults
	if cfg.GetOutlineBins() != 180 {
		t.Errorf("GetOutlineBins() = %d, want 180", cfg.GetOutlineBins())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"fit_method":`, "parse"},
		{"unknown method", "m.json", `{"fit_method": "bfgs"}`, "fit_method"},
		{"bad ttl", "ttl.json", `{"ephemeris_cache_ttl": "soon"}`, "ephemeris_cache_ttl"},
		{"bad speed unit", "u.json", `{"speed_unit": "furlongs"}`, "speed_unit"},
		{"velocity from two samples", "v.json", `{"min_samples_velocity": 2}`, "min_samples_velocity"},
		{"acceleration below velocity", "s.json", `{"min_samples_velocity": 5}`, "min_samples_acceleration"},
		{"bad step", "step.json", `{"finite_diff_step": 0.5}`, "finite_diff_step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("LoadConfig() error = %v, want too large", err)
	}
}
