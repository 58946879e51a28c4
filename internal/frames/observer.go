package frames

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// Pixel is a 2-D image position in pixels.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Helioprojective holds observer-centric angular coordinates.
// Tx is positive toward solar west, Ty toward solar north (radians).
type Helioprojective struct {
	Tx       float64
	Ty       float64
	Distance float64 // observer-point distance (Rsun)
}

// ImagePlane describes how helioprojective angles map onto detector pixels.
// The mapping is linear in angle about the reference pixel, rotated by Roll.
type ImagePlane struct {
	PlateScale float64 // radians per pixel
	RefPixelX  float64 // pixel at which the pointing applies
	RefPixelY  float64
	RefTx      float64 // helioprojective pointing of the reference pixel (radians)
	RefTy      float64
	Roll       float64 // rotation of image axes from solar north, counter-clockwise (radians)
}

// Observer is a spacecraft or instrument vantage point at one instant.
// Position is stored in HGS (solar radii). Values are immutable; build a
// new Observer for every (spacecraft, time) pair.
type Observer struct {
	ID       string
	Time     time.Time
	Position r3.Vector
	Plane    ImagePlane

	// image-frame basis, derived from Position
	toSun r3.Vector
	north r3.Vector
	west  r3.Vector
}

// NewObserver builds an Observer from an HGS position.
func NewObserver(id string, t time.Time, posHGS r3.Vector, plane ImagePlane) (Observer, error) {
	o := Observer{ID: id, Time: t, Position: posHGS, Plane: plane}
	if err := o.init(); err != nil {
		return Observer{}, err
	}
	return o, nil
}

// NewObserverFromFrame builds an Observer from a position expressed in any
// supported frame, converting it to HGS at time t.
func NewObserverFromFrame(id string, t time.Time, pos r3.Vector, frame Frame, plane ImagePlane) (Observer, error) {
	hgs, err := Convert(pos, frame, HGS, t)
	if err != nil {
		return Observer{}, fmt.Errorf("observer %s: %w", id, err)
	}
	return NewObserver(id, t, hgs, plane)
}

func (o *Observer) init() error {
	dist := o.Position.Norm()
	if dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return &MissingEphemerisError{Observer: o.ID, Time: o.Time, Reason: "observer position is undefined"}
	}
	if o.Plane.PlateScale <= 0 {
		return fmt.Errorf("observer %s: plate scale must be positive, got %g", o.ID, o.Plane.PlateScale)
	}
	o.toSun = o.Position.Mul(-1 / dist)

	// Solar north projected onto the sky plane. Fall back to HGS x when the
	// observer sits over a pole.
	ref := r3.Vector{Z: 1}
	n := ref.Sub(o.toSun.Mul(ref.Dot(o.toSun)))
	if n.Norm() < 1e-9 {
		ref = r3.Vector{X: 1}
		n = ref.Sub(o.toSun.Mul(ref.Dot(o.toSun)))
	}
	o.north = n.Normalize()
	o.west = o.toSun.Cross(o.north)
	return nil
}

// Distance returns the observer's distance from Sun centre (Rsun).
func (o Observer) Distance() float64 { return o.Position.Norm() }

// ToHelioprojective converts an HGS point into the observer's angular frame.
func (o Observer) ToHelioprojective(p r3.Vector) (Helioprojective, error) {
	d := p.Sub(o.Position)
	dist := d.Norm()
	if dist < 1e-9 {
		return Helioprojective{}, &SingularProjectionError{Observer: o.ID, Time: o.Time, Point: p}
	}
	return Helioprojective{
		Tx:       math.Atan2(d.Dot(o.west), d.Dot(o.toSun)),
		Ty:       math.Asin(clamp(d.Dot(o.north)/dist, -1, 1)),
		Distance: dist,
	}, nil
}

// HelioprojectiveToPixel maps angular coordinates onto detector pixels.
func (o Observer) HelioprojectiveToPixel(hp Helioprojective) Pixel {
	u := (hp.Tx - o.Plane.RefTx) / o.Plane.PlateScale
	v := (hp.Ty - o.Plane.RefTy) / o.Plane.PlateScale
	s, c := math.Sincos(o.Plane.Roll)
	return Pixel{
		X: o.Plane.RefPixelX + u*c + v*s,
		Y: o.Plane.RefPixelY - u*s + v*c,
	}
}

// PixelToHelioprojective is the inverse of HelioprojectiveToPixel. The
// returned Distance is zero: a single pixel does not fix depth.
func (o Observer) PixelToHelioprojective(px Pixel) Helioprojective {
	dx := (px.X - o.Plane.RefPixelX) * o.Plane.PlateScale
	dy := (px.Y - o.Plane.RefPixelY) * o.Plane.PlateScale
	s, c := math.Sincos(o.Plane.Roll)
	return Helioprojective{
		Tx: o.Plane.RefTx + dx*c - dy*s,
		Ty: o.Plane.RefTy + dx*s + dy*c,
	}
}

// ToPixel projects an HGS point into the observer's image.
func (o Observer) ToPixel(p r3.Vector) (Pixel, error) {
	hp, err := o.ToHelioprojective(p)
	if err != nil {
		return Pixel{}, err
	}
	return o.HelioprojectiveToPixel(hp), nil
}

// Project projects a set of HGS points. The first singular point aborts the call.
func (o Observer) Project(points []r3.Vector) ([]Pixel, error) {
	out := make([]Pixel, len(points))
	for i, p := range points {
		px, err := o.ToPixel(p)
		if err != nil {
			return nil, err
		}
		out[i] = px
	}
	return out, nil
}

// InFront reports whether p lies in the observer's forward hemisphere.
func (o Observer) InFront(p r3.Vector) bool {
	return p.Sub(o.Position).Dot(o.toSun) > 0
}

// LineOfSight returns the unit HGS direction from the observer through px.
func (o Observer) LineOfSight(px Pixel) r3.Vector {
	hp := o.PixelToHelioprojective(px)
	sTx, cTx := math.Sincos(hp.Tx)
	sTy, cTy := math.Sincos(hp.Ty)
	return o.west.Mul(cTy * sTx).Add(o.north.Mul(sTy)).Add(o.toSun.Mul(cTy * cTx))
}

// InvertOntoPlaneOfSky returns the HGS point where the line of sight through
// px crosses the plane through Sun centre perpendicular to the observer-Sun
// line.
func (o Observer) InvertOntoPlaneOfSky(px Pixel) (r3.Vector, error) {
	dir := o.LineOfSight(px)
	cosang := dir.Dot(o.toSun)
	if cosang <= 1e-12 {
		return r3.Vector{}, ErrNoIntersection
	}
	s := o.Distance() / cosang
	return o.Position.Add(dir.Mul(s)), nil
}

// InvertOntoSphere returns the nearest point where the line of sight through
// px meets a Sun-centred sphere of the given radius (Rsun).
func (o Observer) InvertOntoSphere(px Pixel, radius float64) (r3.Vector, error) {
	dir := o.LineOfSight(px)
	b := o.Position.Dot(dir)
	c := o.Position.Dot(o.Position) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return r3.Vector{}, ErrNoIntersection
	}
	sq := math.Sqrt(disc)
	s := -b - sq
	if s <= 0 {
		s = -b + sq
	}
	if s <= 0 {
		return r3.Vector{}, ErrNoIntersection
	}
	return o.Position.Add(dir.Mul(s)), nil
}

// LineOfSightOccluded reports whether the segment from p to the observer
// passes through a Sun-centred sphere of the given radius. Points inside
// the sphere are occluded.
func (o Observer) LineOfSightOccluded(p r3.Vector, radius float64) bool {
	if p.Dot(p) < radius*radius {
		return true
	}
	v := o.Position.Sub(p)
	a := v.Dot(v)
	if a == 0 {
		return false
	}
	// Closest approach of the segment to Sun centre.
	t := -p.Dot(v) / a
	if t <= 0 || t >= 1 {
		return false
	}
	closest := p.Add(v.Mul(t))
	return closest.Dot(closest) < radius*radius
}

// Validate checks the observer was built by NewObserver.
func (o Observer) Validate() error {
	if o.toSun == (r3.Vector{}) {
		return &MissingEphemerisError{Observer: o.ID, Time: o.Time, Reason: "observer not initialised"}
	}
	return nil
}
