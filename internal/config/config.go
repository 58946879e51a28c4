package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/coronafit/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
// This is the single source of truth for all default values.
const DefaultConfigPath = "config/coronafit.defaults.json"

// Config is the root configuration for fitting, kinematics and the
// coronafit binary. Every field is optional; the Get* methods supply
// defaults for anything omitted.
type Config struct {
	// Fitter
	FitMethod           *string  `json:"fit_method,omitempty"` // "lm" or "nelder-mead"
	FitTolerance        *float64 `json:"fit_tolerance,omitempty"`
	MaxIterations       *int     `json:"max_iterations,omitempty"`
	MeshAlong           *int     `json:"mesh_along,omitempty"`
	MeshAround          *int     `json:"mesh_around,omitempty"`
	OutlineBins         *int     `json:"outline_bins,omitempty"`
	SolarRadius         *float64 `json:"solar_radius,omitempty"` // occulting radius, Rsun
	MarkSigmaPx         *float64 `json:"mark_sigma_px,omitempty"`
	FiniteDiffStep      *float64 `json:"finite_diff_step,omitempty"`
	VisibilityPenaltyPx *float64 `json:"visibility_penalty_px,omitempty"`
	Workers             *int     `json:"workers,omitempty"`

	// Caches
	ProjectionCacheSize *int    `json:"projection_cache_size,omitempty"` // 0 disables
	ProjectionCacheTTL  *string `json:"projection_cache_ttl,omitempty"`  // duration string like "10m"
	EphemerisCacheSize  *int    `json:"ephemeris_cache_size,omitempty"`
	EphemerisCacheTTL   *string `json:"ephemeris_cache_ttl,omitempty"`
	EphemerisTolerance  *string `json:"ephemeris_tolerance,omitempty"` // observer time match window

	// Kinematics
	KinematicsMethod       *string `json:"kinematics_method,omitempty"` // "poly" or "spline"
	PolyOrder              *int    `json:"poly_order,omitempty"`
	MinSamplesVelocity     *int    `json:"min_samples_velocity,omitempty"`
	MinSamplesAcceleration *int    `json:"min_samples_acceleration,omitempty"`
	GridPoints             *int    `json:"grid_points,omitempty"`
	SpeedUnit              *string `json:"speed_unit,omitempty"`

	// Logging
	LogFile       *string `json:"log_file,omitempty"`
	LogMaxSizeMB  *int    `json:"log_max_size_mb,omitempty"`
	LogMaxBackups *int    `json:"log_max_backups,omitempty"`
}

// EmptyConfig returns a Config with all fields set to nil.
// Use LoadConfig to load actual values from the defaults file.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to defaults, so partial
// configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/ or cmd/coronafit/
		"../../../" + DefaultConfigPath,    // nested packages
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.FitMethod != nil {
		switch *c.FitMethod {
		case "lm", "nelder-mead":
		default:
			return fmt.Errorf("fit_method must be \"lm\" or \"nelder-mead\", got %q", *c.FitMethod)
		}
	}
	if c.FitTolerance != nil && (*c.FitTolerance <= 0 || *c.FitTolerance >= 1) {
		return fmt.Errorf("fit_tolerance must be in (0, 1), got %g", *c.FitTolerance)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.MeshAlong != nil && *c.MeshAlong < 4 {
		return fmt.Errorf("mesh_along must be at least 4, got %d", *c.MeshAlong)
	}
	if c.MeshAround != nil && *c.MeshAround < 8 {
		return fmt.Errorf("mesh_around must be at least 8, got %d", *c.MeshAround)
	}
	if c.OutlineBins != nil && *c.OutlineBins < 8 {
		return fmt.Errorf("outline_bins must be at least 8, got %d", *c.OutlineBins)
	}
	if c.SolarRadius != nil && *c.SolarRadius <= 0 {
		return fmt.Errorf("solar_radius must be positive, got %g", *c.SolarRadius)
	}
	if c.MarkSigmaPx != nil && *c.MarkSigmaPx <= 0 {
		return fmt.Errorf("mark_sigma_px must be positive, got %g", *c.MarkSigmaPx)
	}
	if c.FiniteDiffStep != nil && (*c.FiniteDiffStep <= 0 || *c.FiniteDiffStep >= 0.1) {
		return fmt.Errorf("finite_diff_step must be in (0, 0.1), got %g", *c.FiniteDiffStep)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.ProjectionCacheSize != nil && *c.ProjectionCacheSize < 0 {
		return fmt.Errorf("projection_cache_size must be non-negative, got %d", *c.ProjectionCacheSize)
	}
	if c.EphemerisCacheSize != nil && *c.EphemerisCacheSize < 0 {
		return fmt.Errorf("ephemeris_cache_size must be non-negative, got %d", *c.EphemerisCacheSize)
	}
	for name, v := range map[string]*string{
		"projection_cache_ttl": c.ProjectionCacheTTL,
		"ephemeris_cache_ttl":  c.EphemerisCacheTTL,
		"ephemeris_tolerance":  c.EphemerisTolerance,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	if c.KinematicsMethod != nil {
		switch *c.KinematicsMethod {
		case "poly", "spline":
		default:
			return fmt.Errorf("kinematics_method must be \"poly\" or \"spline\", got %q", *c.KinematicsMethod)
		}
	}
	if c.PolyOrder != nil && (*c.PolyOrder < 1 || *c.PolyOrder > 9) {
		return fmt.Errorf("poly_order must be between 1 and 9, got %d", *c.PolyOrder)
	}
	if c.MinSamplesVelocity != nil && *c.MinSamplesVelocity < 3 {
		return fmt.Errorf("min_samples_velocity must be at least 3, got %d", *c.MinSamplesVelocity)
	}
	if c.GetMinSamplesAcceleration() < c.GetMinSamplesVelocity() {
		return fmt.Errorf("min_samples_acceleration (%d) must not be below min_samples_velocity (%d)",
			c.GetMinSamplesAcceleration(), c.GetMinSamplesVelocity())
	}
	if c.GridPoints != nil && *c.GridPoints < 2 {
		return fmt.Errorf("grid_points must be at least 2, got %d", *c.GridPoints)
	}
	if c.SpeedUnit != nil && !units.IsValid(*c.SpeedUnit) {
		return fmt.Errorf("speed_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnit)
	}
	return nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetFitMethod returns the fit_method value or the default.
func (c *Config) GetFitMethod() string {
	if c.FitMethod == nil {
		return "lm"
	}
	return *c.FitMethod
}

// GetFitTolerance returns the fit_tolerance value or the default.
func (c *Config) GetFitTolerance() float64 {
	if c.FitTolerance == nil {
		return 1e-6
	}
	return *c.FitTolerance
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *Config) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 100
	}
	return *c.MaxIterations
}

// GetMeshAlong returns the mesh_along value or the default.
func (c *Config) GetMeshAlong() int {
	if c.MeshAlong == nil {
		return 48
	}
	return *c.MeshAlong
}

// GetMeshAround returns the mesh_around value or the default.
func (c *Config) GetMeshAround() int {
	if c.MeshAround == nil {
		return 48
	}
	return *c.MeshAround
}

// GetOutlineBins returns the outline_bins value or the default.
func (c *Config) GetOutlineBins() int {
	if c.OutlineBins == nil {
		return 180
	}
	return *c.OutlineBins
}

// GetSolarRadius returns the solar_radius value or the default.
func (c *Config) GetSolarRadius() float64 {
	if c.SolarRadius == nil {
		return 1.0
	}
	return *c.SolarRadius
}

// GetMarkSigmaPx returns the mark_sigma_px value or the default.
func (c *Config) GetMarkSigmaPx() float64 {
	if c.MarkSigmaPx == nil {
		return 1.0
	}
	return *c.MarkSigmaPx
}

// GetFiniteDiffStep returns the finite_diff_step value or the default.
func (c *Config) GetFiniteDiffStep() float64 {
	if c.FiniteDiffStep == nil {
		return 1e-3
	}
	return *c.FiniteDiffStep
}

// GetVisibilityPenaltyPx returns the visibility_penalty_px value or the default.
func (c *Config) GetVisibilityPenaltyPx() float64 {
	if c.VisibilityPenaltyPx == nil {
		return 1000
	}
	return *c.VisibilityPenaltyPx
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetProjectionCacheSize returns the projection_cache_size value or the default.
func (c *Config) GetProjectionCacheSize() int {
	if c.ProjectionCacheSize == nil {
		return 0 // disabled
	}
	return *c.ProjectionCacheSize
}

// GetProjectionCacheTTL parses and returns the ProjectionCacheTTL as a time.Duration.
func (c *Config) GetProjectionCacheTTL() time.Duration {
	return durationOr(c.ProjectionCacheTTL, 10*time.Minute)
}

// GetEphemerisCacheSize returns the ephemeris_cache_size value or the default.
func (c *Config) GetEphemerisCacheSize() int {
	if c.EphemerisCacheSize == nil {
		return 256
	}
	return *c.EphemerisCacheSize
}

// GetEphemerisCacheTTL parses and returns the EphemerisCacheTTL as a time.Duration.
func (c *Config) GetEphemerisCacheTTL() time.Duration {
	return durationOr(c.EphemerisCacheTTL, time.Hour)
}

// GetEphemerisTolerance parses and returns the EphemerisTolerance as a time.Duration.
func (c *Config) GetEphemerisTolerance() time.Duration {
	return durationOr(c.EphemerisTolerance, time.Minute)
}

// GetKinematicsMethod returns the kinematics_method value or the default.
func (c *Config) GetKinematicsMethod() string {
	if c.KinematicsMethod == nil {
		return "poly"
	}
	return *c.KinematicsMethod
}

// GetPolyOrder returns the poly_order value or the default.
func (c *Config) GetPolyOrder() int {
	if c.PolyOrder == nil {
		return 2
	}
	return *c.PolyOrder
}

// GetMinSamplesVelocity returns the min_samples_velocity value or the default.
func (c *Config) GetMinSamplesVelocity() int {
	if c.MinSamplesVelocity == nil {
		return 3
	}
	return *c.MinSamplesVelocity
}

// GetMinSamplesAcceleration returns the min_samples_acceleration value or the default.
func (c *Config) GetMinSamplesAcceleration() int {
	if c.MinSamplesAcceleration == nil {
		return 4
	}
	return *c.MinSamplesAcceleration
}

// GetGridPoints returns the grid_points value or the default.
func (c *Config) GetGridPoints() int {
	if c.GridPoints == nil {
		return 120
	}
	return *c.GridPoints
}

// GetSpeedUnit returns the speed_unit value or the default.
func (c *Config) GetSpeedUnit() string {
	if c.SpeedUnit == nil {
		return units.KMS
	}
	return *c.SpeedUnit
}

// GetLogFile returns the log_file value or the default (no file).
func (c *Config) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}

// GetLogMaxSizeMB returns the log_max_size_mb value or the default.
func (c *Config) GetLogMaxSizeMB() int {
	if c.LogMaxSizeMB == nil {
		return 10
	}
	return *c.LogMaxSizeMB
}

// GetLogMaxBackups returns the log_max_backups value or the default.
func (c *Config) GetLogMaxBackups() int {
	if c.LogMaxBackups == nil {
		return 3
	}
	return *c.LogMaxBackups
}
