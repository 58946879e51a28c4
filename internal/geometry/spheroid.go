package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

var (
	lonSpec    = ParamSpec{Name: ParamLon, Unit: "deg", Min: -2 * math.Pi, Max: 2 * math.Pi, Angle: true}
	latSpec    = ParamSpec{Name: ParamLat, Unit: "deg", Min: -math.Pi / 2, Max: math.Pi / 2, Angle: true}
	tiltSpec   = ParamSpec{Name: ParamTilt, Unit: "deg", Min: -math.Pi, Max: math.Pi, Angle: true}
	heightSpec = ParamSpec{Name: ParamHeight, Unit: "Rsun", Min: 1, Max: 250}
)

// Spheroid is a spheroid whose symmetry axis is radial. Parameters:
// lon, lat, height, kappa, epsilon.
//
// kappa is the transverse semi-axis over the centre distance and epsilon
// the radial semi-axis over the transverse semi-axis, minus one.
type Spheroid struct{}

func (Spheroid) Kind() Kind { return KindSpheroid }

func (Spheroid) Params() []ParamSpec {
	return []ParamSpec{
		lonSpec,
		latSpec,
		heightSpec,
		{Name: ParamKappa, Min: 0.01, Max: 3},
		{Name: ParamEpsilon, Min: -0.9, Max: 3},
	}
}

func (Spheroid) Seed() []float64 { return []float64{0, 0, 5, 0.7, 0} }

func (s Spheroid) Surface(p []float64, res Resolution) ([]r3.Vector, error) {
	if err := ValidateParams(s, p); err != nil {
		return nil, err
	}
	rc, a, b := SpheroidAxes(p[2], p[3], p[4])
	f := newApexFrame(p[0], p[1], 0)
	return ellipsoidMesh(f, rc, a, b, b, res), nil
}

func (Spheroid) LeadingEdge(p []float64) float64 { return p[2] }

func (Spheroid) Apex(p []float64) r3.Vector {
	return newApexFrame(p[0], p[1], 0).Z.Mul(p[2])
}

// SpheroidAxes converts the (height, kappa, epsilon) representation to the
// centre distance and the radial and transverse semi-axes.
func SpheroidAxes(height, kappa, epsilon float64) (rcenter, radaxis, orthoaxis float64) {
	rcenter = height / (1 + kappa*(1+epsilon))
	orthoaxis = kappa * rcenter
	radaxis = orthoaxis * (1 + epsilon)
	return rcenter, radaxis, orthoaxis
}

// SpheroidShape is the inverse of SpheroidAxes.
func SpheroidShape(rcenter, radaxis, orthoaxis float64) (height, kappa, epsilon float64, err error) {
	if rcenter <= 0 || orthoaxis <= 0 {
		return 0, 0, 0, fmt.Errorf("spheroid axes must be positive: rcenter=%g orthoaxis=%g", rcenter, orthoaxis)
	}
	return rcenter + radaxis, orthoaxis / rcenter, radaxis/orthoaxis - 1, nil
}

// ellipsoidMesh samples the ellipsoid centred at rc along f.Z with radial
// semi-axis a and transverse semi-axes bx (along f.X) and by (along f.Y).
// Poles appear once.
func ellipsoidMesh(f apexFrame, rc, a, bx, by float64, res Resolution) []r3.Vector {
	res = res.normalised()
	pts := make([]r3.Vector, 0, 2+(res.Along-1)*res.Around)
	pts = append(pts, f.toHGS(0, 0, rc+a))
	for i := 1; i < res.Along; i++ {
		st, ct := math.Sincos(math.Pi * float64(i) / float64(res.Along))
		for j := 0; j < res.Around; j++ {
			sp, cp := math.Sincos(2 * math.Pi * float64(j) / float64(res.Around))
			pts = append(pts, f.toHGS(bx*st*cp, by*st*sp, rc+a*ct))
		}
	}
	return append(pts, f.toHGS(0, 0, rc-a))
}
