package kinematics

import (
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// splineFit is a natural cubic spline through the samples, with
// leave-one-out refits for jackknife uncertainties.
type splineFit struct {
	main   *interp.NaturalCubic
	jack   []*interp.NaturalCubic
	lo, hi float64
}

func fitSpline(ts, hs []float64) (*splineFit, error) {
	n := len(ts)
	if n < 3 {
		return nil, &InsufficientSamplesError{Have: n, Need: 3}
	}
	s := &splineFit{main: &interp.NaturalCubic{}, lo: ts[0], hi: ts[n-1]}
	if err := s.main.Fit(ts, hs); err != nil {
		return nil, err
	}
	if n-1 < 3 {
		diagf("spline through %d samples has no jackknife uncertainty", n)
		return s, nil
	}
	for i := 0; i < n; i++ {
		xs := make([]float64, 0, n-1)
		ys := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				xs = append(xs, ts[j])
				ys = append(ys, hs[j])
			}
		}
		sp := &interp.NaturalCubic{}
		if err := sp.Fit(xs, ys); err != nil {
			return nil, err
		}
		s.jack = append(s.jack, sp)
	}
	return s, nil
}

// second returns the second derivative of sp at t by central differences
// of the analytic first derivative, kept inside the fitted range.
func (s *splineFit) second(sp *interp.NaturalCubic, t float64) float64 {
	h := 1e-3 * (s.hi - s.lo)
	a := math.Max(s.lo, t-h)
	b := math.Min(s.hi, t+h)
	if b <= a {
		return 0
	}
	return (sp.PredictDerivative(b) - sp.PredictDerivative(a)) / (b - a)
}

// jackknife returns the leave-one-out standard error of f.
func (s *splineFit) jackknife(f func(*interp.NaturalCubic) float64) float64 {
	if len(s.jack) == 0 {
		return 0
	}
	n := float64(len(s.jack))
	vals := make([]float64, len(s.jack))
	for i, sp := range s.jack {
		vals[i] = f(sp)
	}
	mean := stat.Mean(vals, nil)
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt((n - 1) / n * ss)
}

func (s *splineFit) eval(t float64) (h, dh, d2h, sh, sdh, sd2h float64) {
	h = s.main.Predict(t)
	dh = s.main.PredictDerivative(t)
	d2h = s.second(s.main, t)
	sh = s.jackknife(func(sp *interp.NaturalCubic) float64 { return sp.Predict(t) })
	sdh = s.jackknife(func(sp *interp.NaturalCubic) float64 { return sp.PredictDerivative(t) })
	sd2h = s.jackknife(func(sp *interp.NaturalCubic) float64 { return s.second(sp, t) })
	return h, dh, d2h, sh, sdh, sd2h
}
