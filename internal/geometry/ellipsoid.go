package geometry

import (
	"github.com/golang/geo/r3"
)

// Ellipsoid generalises Spheroid with independent transverse axes and a
// tilt. Parameters: lon, lat, tilt, height, kappa, epsilon, alpha, where
// alpha is the ratio of the second transverse axis to the first.
type Ellipsoid struct{}

func (Ellipsoid) Kind() Kind { return KindEllipsoid }

func (Ellipsoid) Params() []ParamSpec {
	return []ParamSpec{
		lonSpec,
		latSpec,
		tiltSpec,
		heightSpec,
		{Name: ParamKappa, Min: 0.01, Max: 3},
		{Name: ParamEpsilon, Min: -0.9, Max: 3},
		{Name: ParamAlpha, Min: 0.1, Max: 10},
	}
}

func (Ellipsoid) Seed() []float64 { return []float64{0, 0, 0, 5, 0.7, 0, 1} }

func (e Ellipsoid) Surface(p []float64, res Resolution) ([]r3.Vector, error) {
	if err := ValidateParams(e, p); err != nil {
		return nil, err
	}
	rc, a, b := SpheroidAxes(p[3], p[4], p[5])
	f := newApexFrame(p[0], p[1], p[2])
	return ellipsoidMesh(f, rc, a, b*p[6], b, res), nil
}

func (Ellipsoid) LeadingEdge(p []float64) float64 { return p[3] }

func (Ellipsoid) Apex(p []float64) r3.Vector {
	return newApexFrame(p[0], p[1], p[2]).Z.Mul(p[3])
}
