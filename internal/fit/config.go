package fit

import (
	"fmt"

	"github.com/banshee-data/coronafit/internal/config"
	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/projection"
)

// Method selects the optimiser.
type Method string

const (
	MethodLM         Method = "lm"
	MethodNelderMead Method = "nelder-mead"
)

// Config holds the fitter settings. Zero values fall back to
// DefaultConfig's values in Fit.
type Config struct {
	Method Method
	// Tolerance is the relative cost improvement below which a fit is
	// considered converged.
	Tolerance     float64
	MaxIterations int
	Resolution    geometry.Resolution
	Outline       projection.Options
	// MarkSigma is the assumed marking noise in pixels; it floors the
	// residual variance used for uncertainties.
	MarkSigma float64
	// FiniteDiffStep is the relative Jacobian step.
	FiniteDiffStep float64
	// VisibilityPenalty is the residual (pixels) charged per mark when a
	// view loses sight of the model during the search.
	VisibilityPenalty float64
	// Workers bounds FitAll concurrency.
	Workers int
	// Cache optionally memoises projections.
	Cache *projection.Cache
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Method:            MethodLM,
		Tolerance:         1e-6,
		MaxIterations:     100,
		Resolution:        geometry.DefaultResolution,
		Outline:           projection.DefaultOptions(),
		MarkSigma:         1,
		FiniteDiffStep:    1e-3,
		VisibilityPenalty: 1000,
		Workers:           4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Resolution == (geometry.Resolution{}) {
		c.Resolution = d.Resolution
	}
	if c.Outline == (projection.Options{}) {
		c.Outline = d.Outline
	}
	if c.MarkSigma <= 0 {
		c.MarkSigma = d.MarkSigma
	}
	if c.FiniteDiffStep <= 0 {
		c.FiniteDiffStep = d.FiniteDiffStep
	}
	if c.VisibilityPenalty <= 0 {
		c.VisibilityPenalty = d.VisibilityPenalty
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Validate checks the settings after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Method {
	case MethodLM, MethodNelderMead:
	default:
		return fmt.Errorf("unknown fit method %q (want %q or %q)", c.Method, MethodLM, MethodNelderMead)
	}
	if c.FiniteDiffStep >= 0.1 {
		return fmt.Errorf("finite difference step %g too large", c.FiniteDiffStep)
	}
	if c.Tolerance >= 1 {
		return fmt.Errorf("tolerance %g must be below 1", c.Tolerance)
	}
	return nil
}

// FitConfigFromConfig builds fitter settings from the loaded configuration.
// A positive projection_cache_size attaches a fresh projection cache.
func FitConfigFromConfig(cfg *config.Config) Config {
	c := Config{
		Method:            Method(cfg.GetFitMethod()),
		Tolerance:         cfg.GetFitTolerance(),
		MaxIterations:     cfg.GetMaxIterations(),
		Resolution:        geometry.Resolution{Along: cfg.GetMeshAlong(), Around: cfg.GetMeshAround()},
		Outline:           projection.Options{OutlineBins: cfg.GetOutlineBins(), SolarRadius: cfg.GetSolarRadius()},
		MarkSigma:         cfg.GetMarkSigmaPx(),
		FiniteDiffStep:    cfg.GetFiniteDiffStep(),
		VisibilityPenalty: cfg.GetVisibilityPenaltyPx(),
		Workers:           cfg.GetWorkers(),
	}
	if n := cfg.GetProjectionCacheSize(); n > 0 {
		c.Cache = projection.NewCache(uint64(n), cfg.GetProjectionCacheTTL())
	}
	return c
}
