// Package fit recovers geometric model parameters from operator marks on
// one or more coronagraph views by minimising the pixel distance between
// each mark and the projected model outline.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/geometry"
)

// FitPointSet is the operator's marks on one observer's image.
type FitPointSet struct {
	Observer frames.Observer
	Marks    []frames.Pixel
}

// Request describes one single-timestamp fit.
type Request struct {
	Kind geometry.Kind
	Seed []float64
	Time time.Time
	Sets []FitPointSet
	// Fixed names parameters held at their seed value.
	Fixed []string
}

// ViewStatus records how a view took part in a fit.
type ViewStatus struct {
	Observer string
	Marks    int
	Active   bool
	// RMS is the final residual RMS over this view's marks, in pixels.
	RMS float64
	// Err is set for skipped views, e.g. *NoVisibleGeometryError.
	Err error
}

// Result is a fitted model with its diagnostics.
type Result struct {
	Model geometry.Instance
	// Cost is the sum of squared residuals in pixels².
	Cost        float64
	RMS         float64
	Converged   bool
	Iterations  int
	Evaluations int
	Method      Method
	// Free lists the parameter names that were optimised, in
	// Covariance order.
	Free []string
	// Uncertainty is the one-sigma uncertainty per parameter, zero for
	// fixed ones.
	Uncertainty []float64
	Covariance  *mat.SymDense
	Views       []ViewStatus
	Outlines    map[string][]frames.Pixel
}

// LeadingEdge returns the fitted leading-edge height in Rsun.
func (r Result) LeadingEdge() float64 { return r.Model.LeadingEdge() }

// Sigma returns the uncertainty of the named parameter.
func (r Result) Sigma(name string) (float64, bool) {
	m, err := r.Model.Model()
	if err != nil {
		return 0, false
	}
	i := geometry.IndexOf(m, name)
	if i < 0 || i >= len(r.Uncertainty) {
		return 0, false
	}
	return r.Uncertainty[i], true
}

// HeightSigma returns the uncertainty of the leading-edge height.
func (r Result) HeightSigma() float64 {
	s, ok := r.Sigma(geometry.ParamHeight)
	if !ok {
		return math.NaN()
	}
	return s
}

// Fit runs a single-timestamp fit. Views where the seed is entirely
// hidden are skipped and reported in Result.Views; the fit fails with
// *NoVisibleGeometryError only when every view is skipped. Reaching the
// iteration limit is reported through Result.Converged.
func Fit(ctx context.Context, req Request, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	seed := geometry.Instance{Kind: req.Kind, Params: req.Seed, Time: req.Time}
	if err := seed.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid seed: %w", err)
	}
	if len(req.Sets) == 0 {
		return Result{}, ErrNoViews
	}
	model, _ := seed.Model()

	free, err := freeIndices(model, req.Fixed)
	if err != nil {
		return Result{}, err
	}

	views := make([]ViewStatus, len(req.Sets))
	var active []FitPointSet
	var activeIdx []int
	var skipped []error
	for i, set := range req.Sets {
		views[i] = ViewStatus{Observer: set.Observer.ID, Marks: len(set.Marks)}
		if err := set.Observer.Validate(); err != nil {
			return Result{}, err
		}
		if len(set.Marks) == 0 {
			continue
		}
		proj, err := cfg.Cache.Project(seed, cfg.Resolution, set.Observer, cfg.Outline)
		if err != nil {
			return Result{}, err
		}
		if proj.Empty() {
			nv := &NoVisibleGeometryError{Observer: set.Observer.ID, Time: set.Observer.Time}
			views[i].Err = nv
			skipped = append(skipped, nv)
			diagf("skipping view %s: %v", set.Observer.ID, nv)
			continue
		}
		views[i].Active = true
		active = append(active, set)
		activeIdx = append(activeIdx, i)
	}
	if len(active) == 0 {
		if len(skipped) > 0 {
			return Result{}, errors.Join(skipped...)
		}
		return Result{}, &UnderdeterminedFitError{Marks: 0, Free: len(free)}
	}

	prob := newProblem(model, seed, free, active, cfg)
	if prob.marks < len(free) {
		return Result{}, &UnderdeterminedFitError{Marks: prob.marks, Free: len(free)}
	}

	var sol solution
	switch cfg.Method {
	case MethodNelderMead:
		sol, err = minimiseNelderMead(ctx, prob)
	default:
		sol, err = minimiseLM(ctx, prob)
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Model:       geometry.Instance{Kind: req.Kind, Params: prob.full(sol.x), Time: req.Time},
		Converged:   sol.converged,
		Iterations:  sol.iterations,
		Method:      cfg.Method,
		Views:       views,
		Uncertainty: make([]float64, len(req.Seed)),
		Outlines:    make(map[string][]frames.Pixel),
	}
	for _, i := range free {
		res.Free = append(res.Free, model.Params()[i].Name)
	}

	r, err := prob.residuals(sol.x)
	if err != nil {
		return Result{}, err
	}
	res.Cost = sumSquares(r)
	res.RMS = math.Sqrt(res.Cost / float64(len(r)))
	for k, vi := range activeIdx {
		lo, hi := prob.offsets[k], prob.offsets[k+1]
		res.Views[vi].RMS = math.Sqrt(sumSquares(r[lo:hi]) / float64(hi-lo))
	}

	if len(free) > 0 {
		cov, sigmas, err := prob.covariance(sol.x, r)
		if err != nil {
			return Result{}, err
		}
		res.Covariance = cov
		for j, i := range free {
			res.Uncertainty[i] = sigmas[j]
		}
	}
	res.Evaluations = int(prob.evaluations.Load())

	for _, set := range req.Sets {
		proj, err := cfg.Cache.Project(res.Model, cfg.Resolution, set.Observer, cfg.Outline)
		if err != nil {
			return Result{}, err
		}
		if !proj.Empty() {
			res.Outlines[set.Observer.ID] = proj.Outline
		}
	}

	opsf("fit %s at %s: cost=%.4g rms=%.3gpx converged=%t iterations=%d views=%d/%d",
		req.Kind, req.Time.UTC().Format(time.RFC3339), res.Cost, res.RMS, res.Converged,
		res.Iterations, len(active), len(req.Sets))
	return res, nil
}

// freeIndices returns the indices of parameters not named in fixed.
func freeIndices(m geometry.Model, fixed []string) ([]int, error) {
	held := make(map[string]bool, len(fixed))
	for _, name := range fixed {
		if geometry.IndexOf(m, name) < 0 {
			return nil, fmt.Errorf("cannot fix unknown %s parameter %q", m.Kind(), name)
		}
		held[name] = true
	}
	var free []int
	for i, spec := range m.Params() {
		if !held[spec.Name] {
			free = append(free, i)
		}
	}
	return free, nil
}

func sumSquares(r []float64) float64 { return floats.Dot(r, r) }

// solution is the optimiser's output in free-parameter space.
type solution struct {
	x          []float64
	cost       float64
	converged  bool
	iterations int
}

func (s solution) String() string {
	return fmt.Sprintf("cost=%g converged=%t iterations=%d", s.cost, s.converged, s.iterations)
}
