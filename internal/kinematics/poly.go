package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// polyFit is a weighted least-squares polynomial in the normalised time
// tau = t/scale, with its parameter covariance.
type polyFit struct {
	order int
	scale float64
	coef  []float64
	cov   *mat.Dense
}

// fitPoly fits h(t) of the given order. With sigmas, rows are weighted by
// 1/sigma. The covariance is scaled by the reduced chi-square, matching
// numpy.polyfit(cov=True) up to its degrees-of-freedom convention.
func fitPoly(ts, hs, sigmas []float64, order int) (*polyFit, error) {
	n := len(ts)
	k := order + 1
	if n <= k {
		return nil, &InsufficientSamplesError{Have: n, Need: k + 1}
	}
	scale := ts[n-1]
	if scale <= 0 {
		scale = 1
	}

	a := mat.NewDense(n, k, nil)
	b := mat.NewVecDense(n, nil)
	for i, t := range ts {
		w := 1.0
		if sigmas != nil {
			w = 1 / sigmas[i]
		}
		tau := t / scale
		p := 1.0
		for j := 0; j < k; j++ {
			a.Set(i, j, w*p)
			p *= tau
		}
		b.SetVec(i, w*hs[i])
	}

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("kinematics: polynomial fit: %w", err)
	}

	var resid mat.VecDense
	resid.MulVec(a, &c)
	resid.SubVec(b, &resid)
	chi2 := mat.Dot(&resid, &resid)
	dof := n - k

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var cov mat.Dense
	if err := cov.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("kinematics: covariance: %w", err)
	}
	cov.Scale(chi2/float64(dof), &cov)

	coef := make([]float64, k)
	for j := range coef {
		coef[j] = c.AtVec(j)
	}
	return &polyFit{order: order, scale: scale, coef: coef, cov: &cov}, nil
}

// bases returns the polynomial basis and its first two derivatives with
// respect to t (seconds) at t.
func (p *polyFit) bases(t float64) (b, db, d2b *mat.VecDense) {
	k := p.order + 1
	tau := t / p.scale
	b = mat.NewVecDense(k, nil)
	db = mat.NewVecDense(k, nil)
	d2b = mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		fj := float64(j)
		b.SetVec(j, math.Pow(tau, fj))
		if j >= 1 {
			db.SetVec(j, fj*math.Pow(tau, fj-1)/p.scale)
		}
		if j >= 2 {
			d2b.SetVec(j, fj*(fj-1)*math.Pow(tau, fj-2)/(p.scale*p.scale))
		}
	}
	return b, db, d2b
}

func (p *polyFit) eval(t float64) (h, dh, d2h, sh, sdh, sd2h float64) {
	b, db, d2b := p.bases(t)
	c := mat.NewVecDense(len(p.coef), append([]float64(nil), p.coef...))
	spread := func(v *mat.VecDense) float64 {
		return math.Sqrt(math.Max(mat.Inner(v, p.cov, v), 0))
	}
	return mat.Dot(b, c), mat.Dot(db, c), mat.Dot(d2b, c), spread(b), spread(db), spread(d2b)
}

// coefficients converts the fitted coefficients to powers of seconds.
func (p *polyFit) coefficients() []float64 {
	out := make([]float64, len(p.coef))
	for j, c := range p.coef {
		out[j] = c / math.Pow(p.scale, float64(j))
	}
	return out
}

func (p *polyFit) coefficientSigma() []float64 {
	out := make([]float64, len(p.coef))
	for j := range out {
		out[j] = math.Sqrt(math.Max(p.cov.At(j, j), 0)) / math.Pow(p.scale, float64(j))
	}
	return out
}
