package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Shell is a Sun-centred spherical shell segment: an outer cap at height,
// an inner cap thickness below it, and the rim joining them. Parameters:
// lon, lat, height, thickness, halfwidth (angular radius of the cap).
type Shell struct{}

func (Shell) Kind() Kind { return KindShell }

func (Shell) Params() []ParamSpec {
	return []ParamSpec{
		lonSpec,
		latSpec,
		heightSpec,
		{Name: ParamThickness, Unit: "Rsun", Min: 0, Max: 20},
		{Name: ParamHalfWidth, Unit: "deg", Min: 0.02, Max: math.Pi / 2, Angle: true},
	}
}

func (Shell) Seed() []float64 { return []float64{0, 0, 5, 0.5, math.Pi / 4} }

func (s Shell) Surface(p []float64, res Resolution) ([]r3.Vector, error) {
	if err := ValidateParams(s, p); err != nil {
		return nil, err
	}
	res = res.normalised()
	f := newApexFrame(p[0], p[1], 0)
	outer, thick, omega := p[2], p[3], p[4]
	inner := math.Max(outer-thick, 0)

	pts := capMesh(nil, f, outer, omega, res)
	if thick > 0 {
		pts = capMesh(pts, f, inner, omega, res)
		rimSteps := int(math.Ceil(thick / (outer * omega / float64(res.Along))))
		if rimSteps < 1 {
			rimSteps = 1
		}
		so, co := math.Sincos(omega)
		for k := 1; k < rimSteps; k++ {
			r := inner + thick*float64(k)/float64(rimSteps)
			for j := 0; j < res.Around; j++ {
				sp, cp := math.Sincos(2 * math.Pi * float64(j) / float64(res.Around))
				pts = append(pts, f.toHGS(r*so*cp, r*so*sp, r*co))
			}
		}
	}
	return pts, nil
}

// capMesh appends a spherical cap of radius r and angular radius omega
// about f.Z.
func capMesh(pts []r3.Vector, f apexFrame, r, omega float64, res Resolution) []r3.Vector {
	pts = append(pts, f.Z.Mul(r))
	for i := 1; i <= res.Along; i++ {
		sw, cw := math.Sincos(omega * float64(i) / float64(res.Along))
		for j := 0; j < res.Around; j++ {
			sp, cp := math.Sincos(2 * math.Pi * float64(j) / float64(res.Around))
			pts = append(pts, f.toHGS(r*sw*cp, r*sw*sp, r*cw))
		}
	}
	return pts
}

func (Shell) LeadingEdge(p []float64) float64 { return p[2] }

func (Shell) Apex(p []float64) r3.Vector {
	return newApexFrame(p[0], p[1], 0).Z.Mul(p[2])
}
