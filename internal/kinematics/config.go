package kinematics

import (
	"fmt"

	"github.com/banshee-data/coronafit/internal/config"
)

// Method selects the height-time model.
type Method string

const (
	MethodPoly   Method = "poly"
	MethodSpline Method = "spline"
)

// Config controls Estimate.
type Config struct {
	Method Method
	// Order is the polynomial degree; it is lowered to n-2 for short
	// series.
	Order                  int
	MinSamplesVelocity     int
	MinSamplesAcceleration int
	// GridPoints is the number of evenly spaced profile points between
	// the first and last sample.
	GridPoints int
}

// DefaultConfig returns a quadratic fit on a 120-point grid, needing three
// samples for velocity and four for acceleration.
func DefaultConfig() Config {
	return Config{
		Method:                 MethodPoly,
		Order:                  2,
		MinSamplesVelocity:     3,
		MinSamplesAcceleration: 4,
		GridPoints:             120,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.Order <= 0 {
		c.Order = d.Order
	}
	if c.MinSamplesVelocity <= 0 {
		c.MinSamplesVelocity = d.MinSamplesVelocity
	}
	if c.MinSamplesAcceleration <= 0 {
		c.MinSamplesAcceleration = d.MinSamplesAcceleration
	}
	if c.GridPoints <= 0 {
		c.GridPoints = d.GridPoints
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Method {
	case MethodPoly, MethodSpline:
	default:
		return fmt.Errorf("unknown kinematics method %q (want %q or %q)", c.Method, MethodPoly, MethodSpline)
	}
	if c.MinSamplesVelocity < minSamplesVelocity {
		return fmt.Errorf("min samples for velocity must be at least %d, got %d", minSamplesVelocity, c.MinSamplesVelocity)
	}
	if c.MinSamplesAcceleration < c.MinSamplesVelocity {
		return fmt.Errorf("min samples for acceleration (%d) below min samples for velocity (%d)",
			c.MinSamplesAcceleration, c.MinSamplesVelocity)
	}
	if c.Order > 9 {
		return fmt.Errorf("polynomial order %d too high", c.Order)
	}
	return nil
}

// KinematicsConfigFromConfig builds estimator settings from the loaded
// configuration.
func KinematicsConfigFromConfig(cfg *config.Config) Config {
	return Config{
		Method:                 Method(cfg.GetKinematicsMethod()),
		Order:                  cfg.GetPolyOrder(),
		MinSamplesVelocity:     cfg.GetMinSamplesVelocity(),
		MinSamplesAcceleration: cfg.GetMinSamplesAcceleration(),
		GridPoints:             cfg.GetGridPoints(),
	}
}

// InsufficientSamplesError reports a series too short for the requested
// derivative.
type InsufficientSamplesError struct {
	Have int
	Need int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples for kinematics: have %d, need %d", e.Have, e.Need)
}
