package fit

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lmInitialLambda = 1e-3
	lmMaxLambda     = 1e10
	lmRetries       = 12
	// lmConvergedLambda is the largest damping at which a small cost
	// improvement counts as convergence. Above it steps are too short
	// for the improvement to say anything about the minimum.
	lmConvergedLambda = 1
	// lmExactRMS is the residual RMS (pixels) treated as an exact fit.
	lmExactRMS = 1e-6
)

// lmConverged reports whether an accepted step that lowered the cost to
// cost with relative improvement rel ends the iteration. m is the number
// of residuals.
func lmConverged(cost, rel, lambda, tol float64, m int) bool {
	if cost <= lmExactRMS*lmExactRMS*float64(m) {
		return true
	}
	return rel < tol && lambda <= lmConvergedLambda
}

// jacobianDense packs per-parameter columns into an m×k matrix.
func jacobianDense(cols [][]float64, m int) *mat.Dense {
	j := mat.NewDense(m, len(cols), nil)
	for c, col := range cols {
		j.SetCol(c, col)
	}
	return j
}

// minimiseLM runs a bounded Levenberg-Marquardt iteration with
// Marquardt's diagonal scaling. Steps leaving the bounds are clamped.
func minimiseLM(ctx context.Context, p *problem) (solution, error) {
	x := p.clamp(p.start())
	cost, r, err := p.cost(x)
	if err != nil {
		return solution{}, err
	}
	if len(x) == 0 {
		return solution{x: x, cost: cost, converged: true}, nil
	}

	k := len(x)
	lambda := lmInitialLambda
	sol := solution{x: x, cost: cost}
	for sol.iterations < p.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return solution{}, err
		}
		if cost <= lmExactRMS*lmExactRMS*float64(p.marks) {
			sol.converged = true
			break
		}
		sol.iterations++

		cols, err := p.jacobian(x)
		if err != nil {
			return solution{}, err
		}
		J := jacobianDense(cols, p.marks)
		var jtj mat.Dense
		jtj.Mul(J.T(), J)
		var g mat.VecDense
		g.MulVec(J.T(), mat.NewVecDense(len(r), r))

		maxDiag := 0.0
		for i := 0; i < k; i++ {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		floor := 1e-9*maxDiag + 1e-12

		accepted := false
		var next []float64
		var nextCost float64
		var nextR []float64
		for try := 0; try < lmRetries && lambda < lmMaxLambda; try++ {
			a := mat.DenseCopyOf(&jtj)
			for i := 0; i < k; i++ {
				d := jtj.At(i, i)
				a.Set(i, i, d+lambda*math.Max(d, floor))
			}
			var step mat.VecDense
			if err := step.SolveVec(a, &g); err != nil {
				lambda *= 10
				continue
			}
			cand := make([]float64, k)
			for i := range cand {
				cand[i] = x[i] - step.AtVec(i)
			}
			p.clamp(cand)
			c, cr, err := p.cost(cand)
			if err != nil {
				return solution{}, err
			}
			if c < cost {
				accepted, next, nextCost, nextR = true, cand, c, cr
				lambda = math.Max(lambda/10, 1e-12)
				break
			}
			lambda *= 10
		}
		if !accepted {
			// stalled: no damping gives a lower cost
			diagf("lm iteration %d: no improving step, lambda=%g |g|=%g", sol.iterations, lambda, floats.Norm(g.RawVector().Data, math.Inf(1)))
			break
		}

		rel := (cost - nextCost) / cost
		x, cost, r = next, nextCost, nextR
		sol.x, sol.cost = x, cost
		tracef("lm iteration %d: cost=%g rel=%g lambda=%g", sol.iterations, cost, rel, lambda)
		if lmConverged(cost, rel, lambda, p.cfg.Tolerance, p.marks) {
			sol.converged = true
			break
		}
	}
	if !sol.converged {
		diagf("lm stopped after %d iterations without converging (%s)", sol.iterations, sol)
	}
	return sol, nil
}
