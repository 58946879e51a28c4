package fit

import (
	"context"

	"gonum.org/v1/gonum/optimize"
)

// boundPenalty weights the squared distance outside the bounds so the
// simplex is pushed back instead of resting on a clamped plateau.
const boundPenalty = 1e6

// ctxRecorder aborts a gonum optimisation when ctx is cancelled.
type ctxRecorder struct {
	ctx context.Context
}

func (r ctxRecorder) Init() error { return r.ctx.Err() }

func (r ctxRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op == optimize.MajorIteration {
		tracef("nelder-mead iteration %d: cost=%g", stats.MajorIterations, loc.F)
	}
	return r.ctx.Err()
}

// minimiseNelderMead minimises the sum of squared residuals with gonum's
// derivative-free simplex method.
func minimiseNelderMead(ctx context.Context, p *problem) (solution, error) {
	x0 := p.clamp(p.start())
	if len(x0) == 0 {
		c, _, err := p.cost(x0)
		return solution{x: x0, cost: c, converged: true}, err
	}

	var evalErr error
	objective := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := p.clamp(append([]float64(nil), x...))
			c, _, err := p.cost(clamped)
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				return boundPenalty
			}
			for i := range x {
				d := x[i] - clamped[i]
				c += boundPenalty * d * d
			}
			return c
		},
	}
	settings := &optimize.Settings{
		MajorIterations: p.cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   p.cfg.Tolerance,
			Iterations: 3 * len(x0),
		},
		Recorder: ctxRecorder{ctx: ctx},
	}

	res, err := optimize.Minimize(objective, x0, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return solution{}, ctxErr
	}
	if evalErr != nil {
		return solution{}, evalErr
	}
	if res == nil {
		return solution{}, err
	}
	if err != nil {
		diagf("nelder-mead terminated with %v", err)
	}

	sol := solution{
		x:          p.clamp(append([]float64(nil), res.Location.X...)),
		cost:       res.Location.F,
		iterations: res.Stats.MajorIterations,
	}
	switch res.Status {
	case optimize.FunctionConvergence, optimize.FunctionThreshold, optimize.MethodConverge, optimize.Success:
		sol.converged = true
	}
	if !sol.converged {
		diagf("nelder-mead stopped with status %v after %d iterations", res.Status, sol.iterations)
	}
	return sol, nil
}
