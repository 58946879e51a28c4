// Package kinematics derives velocity and acceleration profiles from a
// leading-edge height-time series.
package kinematics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/coronafit/internal/sequence"
	"github.com/banshee-data/coronafit/internal/units"
)

// ErrDuplicateTime is returned for two samples at the same instant.
var ErrDuplicateTime = errors.New("kinematics: duplicate sample time")

// minSamplesVelocity is the shortest series with a non-constant fit.
const minSamplesVelocity = 3

// ProfilePoint is the height and its derivatives at one instant.
// Velocity is in km/s and acceleration in m/s². Acceleration is nil when
// the series is too short to determine it.
type ProfilePoint struct {
	Time              time.Time `json:"time"`
	Height            float64   `json:"height"`
	HeightSigma       float64   `json:"height_sigma"`
	Velocity          float64   `json:"velocity"`
	VelocitySigma     float64   `json:"velocity_sigma"`
	Acceleration      *float64  `json:"acceleration,omitempty"`
	AccelerationSigma *float64  `json:"acceleration_sigma,omitempty"`
}

// Profile is the derived kinematic view of a height-time series. It is
// recomputed from the samples and holds no reference to them.
type Profile struct {
	Method Method
	// Order is the polynomial degree actually fitted.
	Order int
	T0    time.Time
	// Samples holds the fitted profile at each input time; Height is the
	// observed height.
	Samples []ProfilePoint
	Grid    []ProfilePoint
	// Coefficients of the polynomial in seconds since T0, lowest power
	// first, in Rsun/s^k. Empty for splines.
	Coefficients     []float64
	CoefficientSigma []float64
	HasAcceleration  bool
	// RMS is the height residual in Rsun.
	RMS          float64
	NonMonotonic []int
	// accelerationNeed is the sample count acceleration would need.
	accelerationNeed int
}

// AccelerationAt returns the acceleration and its sigma (m/s²) at the
// i-th sample. It fails with *InsufficientSamplesError when the profile
// carries no acceleration.
func (p Profile) AccelerationAt(i int) (float64, float64, error) {
	if i < 0 || i >= len(p.Samples) {
		return 0, 0, fmt.Errorf("kinematics: sample %d out of range [0, %d)", i, len(p.Samples))
	}
	pt := p.Samples[i]
	if !p.HasAcceleration || pt.Acceleration == nil || pt.AccelerationSigma == nil {
		return 0, 0, &InsufficientSamplesError{Have: len(p.Samples), Need: p.accelerationNeed}
	}
	return *pt.Acceleration, *pt.AccelerationSigma, nil
}

// curve evaluates height and its first two time derivatives, with
// one-sigma uncertainties, at t seconds since T0.
type curve interface {
	eval(t float64) (h, dh, d2h, sh, sdh, sd2h float64)
}

// Estimate fits a height-time profile to samples. Samples may arrive in
// any order; they are sorted by time. Fewer than MinSamplesVelocity
// samples yields *InsufficientSamplesError; below MinSamplesAcceleration
// the profile has HasAcceleration=false and no accelerations.
func Estimate(samples []sequence.Sample, cfg Config) (Profile, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Profile{}, err
	}
	n := len(samples)
	if n < cfg.MinSamplesVelocity {
		return Profile{}, &InsufficientSamplesError{Have: n, Need: cfg.MinSamplesVelocity}
	}

	sorted := append([]sequence.Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	t0 := sorted[0].Time
	ts := make([]float64, n)
	hs := make([]float64, n)
	sigmas := make([]float64, n)
	weighted := true
	for i, s := range sorted {
		if i > 0 && s.Time.Equal(sorted[i-1].Time) {
			return Profile{}, fmt.Errorf("%w: %s", ErrDuplicateTime, s.Time.UTC().Format(time.RFC3339Nano))
		}
		if math.IsNaN(s.Height) || math.IsInf(s.Height, 0) {
			return Profile{}, fmt.Errorf("kinematics: invalid height %g at %s", s.Height, s.Time.UTC().Format(time.RFC3339))
		}
		ts[i] = s.Time.Sub(t0).Seconds()
		hs[i] = s.Height
		sigmas[i] = s.Sigma
		if !(s.Sigma > 0) {
			weighted = false
		}
	}
	if !weighted {
		sigmas = nil
	}

	prof := Profile{
		Method:          cfg.Method,
		T0:              t0,
		HasAcceleration: n >= cfg.MinSamplesAcceleration,
		NonMonotonic:    sequence.NonMonotonic(sorted),

		accelerationNeed: cfg.MinSamplesAcceleration,
	}

	var c curve
	switch cfg.Method {
	case MethodSpline:
		sp, err := fitSpline(ts, hs)
		if err != nil {
			return Profile{}, err
		}
		c = sp
	default:
		order := cfg.Order
		if order > n-2 {
			order = n - 2
			diagf("lowering polynomial order from %d to %d for %d samples", cfg.Order, order, n)
		}
		if order < 1 {
			return Profile{}, &InsufficientSamplesError{Have: n, Need: minSamplesVelocity}
		}
		pf, err := fitPoly(ts, hs, sigmas, order)
		if err != nil {
			return Profile{}, err
		}
		prof.Order = order
		prof.Coefficients = pf.coefficients()
		prof.CoefficientSigma = pf.coefficientSigma()
		if order < 2 {
			prof.HasAcceleration = false
			prof.accelerationNeed = max(prof.accelerationNeed, 4)
		}
		c = pf
	}

	point := func(t float64) ProfilePoint {
		h, dh, d2h, sh, sdh, sd2h := c.eval(t)
		p := ProfilePoint{
			Time:          t0.Add(time.Duration(t * float64(time.Second))),
			Height:        h,
			HeightSigma:   sh,
			Velocity:      units.RsunPerSecondToKMS(dh),
			VelocitySigma: units.RsunPerSecondToKMS(sdh),
		}
		if prof.HasAcceleration {
			a, sa := units.RsunPerSecond2ToMPS2(d2h), units.RsunPerSecond2ToMPS2(sd2h)
			p.Acceleration, p.AccelerationSigma = &a, &sa
		}
		return p
	}

	var ss float64
	prof.Samples = make([]ProfilePoint, n)
	for i, t := range ts {
		p := point(t)
		ss += (hs[i] - p.Height) * (hs[i] - p.Height)
		p.Time = sorted[i].Time
		p.Height = hs[i]
		prof.Samples[i] = p
	}
	prof.RMS = math.Sqrt(ss / float64(n))

	span := ts[n-1]
	prof.Grid = make([]ProfilePoint, cfg.GridPoints)
	for i := range prof.Grid {
		t := 0.0
		if cfg.GridPoints > 1 {
			t = span * float64(i) / float64(cfg.GridPoints-1)
		}
		prof.Grid[i] = point(t)
	}
	tracef("%s profile over %d samples: rms=%g Rsun", prof.Method, n, prof.RMS)
	return prof, nil
}
