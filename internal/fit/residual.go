package fit

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/coronafit/internal/geometry"
	"github.com/banshee-data/coronafit/internal/projection"
)

// problem is the least-squares objective over the free parameters.
type problem struct {
	model geometry.Model
	seed  geometry.Instance
	free  []int
	lower []float64
	upper []float64
	views []FitPointSet
	// offsets[k] is the index of view k's first residual.
	offsets []int
	marks   int
	cfg     Config

	evaluations atomic.Int64
}

func newProblem(m geometry.Model, seed geometry.Instance, free []int, views []FitPointSet, cfg Config) *problem {
	p := &problem{model: m, seed: seed, free: free, views: views, cfg: cfg}
	specs := m.Params()
	for _, i := range free {
		p.lower = append(p.lower, specs[i].Min)
		p.upper = append(p.upper, specs[i].Max)
	}
	p.offsets = make([]int, len(views)+1)
	for k, v := range views {
		p.offsets[k+1] = p.offsets[k] + len(v.Marks)
	}
	p.marks = p.offsets[len(views)]
	return p
}

// start returns the seed restricted to the free parameters.
func (p *problem) start() []float64 {
	x := make([]float64, len(p.free))
	for j, i := range p.free {
		x[j] = p.seed.Params[i]
	}
	return x
}

// clamp forces x inside the parameter bounds in place.
func (p *problem) clamp(x []float64) []float64 {
	for j := range x {
		if x[j] < p.lower[j] {
			x[j] = p.lower[j]
		} else if x[j] > p.upper[j] {
			x[j] = p.upper[j]
		}
	}
	return x
}

// full expands free parameters into a complete parameter vector.
func (p *problem) full(x []float64) []float64 {
	out := append([]float64(nil), p.seed.Params...)
	for j, i := range p.free {
		out[i] = x[j]
	}
	return out
}

// residuals returns the signed mark-to-outline distances for every active
// view, projecting views concurrently. A view that has lost sight of the
// model charges VisibilityPenalty per mark.
func (p *problem) residuals(x []float64) ([]float64, error) {
	p.evaluations.Add(1)
	in := geometry.Instance{Kind: p.seed.Kind, Params: p.full(x), Time: p.seed.Time}
	out := make([]float64, p.marks)
	errs := make([]error, len(p.views))

	var wg sync.WaitGroup
	for k := range p.views {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			v := p.views[k]
			proj, err := p.cfg.Cache.Project(in, p.cfg.Resolution, v.Observer, p.cfg.Outline)
			if err != nil {
				errs[k] = err
				return
			}
			dst := out[p.offsets[k]:p.offsets[k+1]]
			if proj.Empty() {
				for i := range dst {
					dst[i] = p.cfg.VisibilityPenalty
				}
				return
			}
			for i, m := range v.Marks {
				dst[i] = projection.SignedDistance(m, proj.Outline)
			}
		}(k)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cost returns the sum of squared residuals at x.
func (p *problem) cost(x []float64) (float64, []float64, error) {
	r, err := p.residuals(x)
	if err != nil {
		return 0, nil, err
	}
	return sumSquares(r), r, nil
}

// jacobian returns the central-difference Jacobian of the residuals at x,
// one row per mark and one column per free parameter. Steps are shortened
// to stay inside the bounds.
func (p *problem) jacobian(x []float64) ([][]float64, error) {
	cols := make([][]float64, len(x))
	for j := range x {
		h := p.cfg.FiniteDiffStep * max(1, math.Abs(x[j]))
		hi := min(x[j]+h, p.upper[j])
		lo := max(x[j]-h, p.lower[j])
		if hi <= lo {
			cols[j] = make([]float64, p.marks)
			continue
		}
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j], xm[j] = hi, lo
		rp, err := p.residuals(xp)
		if err != nil {
			return nil, err
		}
		rm, err := p.residuals(xm)
		if err != nil {
			return nil, err
		}
		col := make([]float64, p.marks)
		for i := range col {
			col[i] = (rp[i] - rm[i]) / (hi - lo)
		}
		cols[j] = col
	}
	return cols, nil
}
