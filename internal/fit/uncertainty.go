package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// singularFloor bounds the smallest singular value of JᵀJ relative to the
// largest, so unconstrained directions get large but finite variances.
const singularFloor = 1e-12

// covariance estimates the free-parameter covariance σ²(JᵀJ)⁺ at x, where
// σ² is the larger of the reduced chi-square and MarkSigma².
func (p *problem) covariance(x, r []float64) (*mat.SymDense, []float64, error) {
	cols, err := p.jacobian(x)
	if err != nil {
		return nil, nil, err
	}
	k := len(x)
	J := jacobianDense(cols, p.marks)
	var jtj mat.Dense
	jtj.Mul(J.T(), J)

	var svd mat.SVD
	if ok := svd.Factorize(&jtj, mat.SVDFull); !ok {
		return nil, nil, errors.New("fit: covariance factorisation failed")
	}
	s := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	floor := singularFloor
	if len(s) > 0 && s[0] > 0 {
		floor = math.Max(s[0]*singularFloor, 1e-300)
	}

	dof := len(r) - k
	variance := sumSquares(r)
	if dof > 0 {
		variance /= float64(dof)
	}
	variance = math.Max(variance, p.cfg.MarkSigma*p.cfg.MarkSigma)

	cov := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sum := 0.0
			for n := range s {
				sum += v.At(i, n) * v.At(j, n) / math.Max(s[n], floor)
			}
			cov.SetSym(i, j, variance*sum)
		}
	}
	sigmas := make([]float64, k)
	for i := range sigmas {
		sigmas[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
	}
	return cov, sigmas, nil
}
