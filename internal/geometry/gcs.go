package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// GCS is the graduated cylindrical shell of Thernisien (2011): two
// straight conical legs joined by a circular front, swept by a circular
// cross-section whose radius grows with distance from the Sun.
// Parameters: lon, lat, tilt, height, alpha (leg half-angle), kappa
// (aspect ratio).
type GCS struct{}

func (GCS) Kind() Kind { return KindGCS }

func (GCS) Params() []ParamSpec {
	return []ParamSpec{
		lonSpec,
		latSpec,
		tiltSpec,
		heightSpec,
		{Name: ParamAlpha, Unit: "deg", Min: 0.01, Max: 1.4, Angle: true},
		{Name: ParamKappa, Min: 0.01, Max: 0.95},
	}
}

func (GCS) Seed() []float64 { return []float64{0, 0, 0, 6, math.Pi / 6, 0.4} }

// gcsSection is one circular cross-section of the shell: its centre and
// radius in the local frame and the angle of its plane about X.
type gcsSection struct {
	y, z   float64
	radius float64
	angle  float64
}

// gcsFront returns the cross-section of the circular front at beta for a
// junction distance d.
func gcsFront(beta, alpha, kappa, d float64) gcsSection {
	h := d / math.Cos(alpha)
	rho := d * math.Tan(alpha)
	k2 := kappa * kappa
	sb, cb := math.Sincos(beta)
	x0 := (rho + h*k2*sb) / (1 - k2)
	rc := math.Sqrt((h*h*k2-rho*rho)/(1-k2) + x0*x0)
	return gcsSection{y: x0 * cb, z: h + x0*sb, radius: rc, angle: beta}
}

// gcsApex returns the apex distance for a junction distance of one.
func gcsApex(alpha, kappa float64) float64 {
	s := gcsFront(math.Pi/2, alpha, kappa, 1)
	return s.z + s.radius
}

// gcsSkeleton lists the right-hand cross-sections from the foot of the
// leg to the apex for junction distance d.
func gcsSkeleton(alpha, kappa, d float64, along int) []gcsSection {
	nLeg := along / 3
	if nLeg < 2 {
		nLeg = 2
	}
	nFront := along - nLeg
	if nFront < 2 {
		nFront = 2
	}
	out := make([]gcsSection, 0, nLeg+nFront)
	sa, ca := math.Sincos(alpha)
	tanGamma := kappa / math.Sqrt(1-kappa*kappa)
	// the junction itself belongs to the front
	for i := 1; i < nLeg; i++ {
		s := d * float64(i) / float64(nLeg)
		out = append(out, gcsSection{y: s * sa, z: s * ca, radius: s * tanGamma, angle: -alpha})
	}
	for i := 0; i < nFront; i++ {
		beta := -alpha + (math.Pi/2+alpha)*float64(i)/float64(nFront-1)
		out = append(out, gcsFront(beta, alpha, kappa, d))
	}
	return out
}

func (g GCS) Surface(p []float64, res Resolution) ([]r3.Vector, error) {
	if err := ValidateParams(g, p); err != nil {
		return nil, err
	}
	res = res.normalised()
	f := newApexFrame(p[0], p[1], p[2])
	alpha, kappa := p[4], p[5]
	d := p[3] / gcsApex(alpha, kappa)
	skel := gcsSkeleton(alpha, kappa, d, res.Along)

	pts := make([]r3.Vector, 0, 2*len(skel)*res.Around)
	for i, sec := range skel {
		mirror := i < len(skel)-1
		sa, ca := math.Sincos(sec.angle)
		for j := 0; j < res.Around; j++ {
			su, cu := math.Sincos(2 * math.Pi * float64(j) / float64(res.Around))
			x := sec.radius * cu
			dy := sec.radius * su * ca
			z := sec.z + sec.radius*su*sa
			pts = append(pts, f.toHGS(x, sec.y+dy, z))
			if mirror {
				pts = append(pts, f.toHGS(x, -(sec.y+dy), z))
			}
		}
	}
	return pts, nil
}

func (GCS) LeadingEdge(p []float64) float64 { return p[3] }

func (GCS) Apex(p []float64) r3.Vector {
	return newApexFrame(p[0], p[1], p[2]).Z.Mul(p[3])
}

// CrossSectionAtApex returns the radius of the shell's cross-section at
// the apex, in Rsun.
func (GCS) CrossSectionAtApex(p []float64) float64 {
	alpha, kappa := p[4], p[5]
	d := p[3] / gcsApex(alpha, kappa)
	return gcsFront(math.Pi/2, alpha, kappa, d).radius
}

// HalfWidth returns the angular half-width of the shell seen face-on,
// alpha plus the cone half-angle asin(kappa).
func (GCS) HalfWidth(p []float64) float64 { return p[4] + math.Asin(p[5]) }
