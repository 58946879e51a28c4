// Package geometry defines the parametric 3-D shapes fitted to CME and
// shock fronts and generates their discretised surfaces.
//
// Every variant satisfies the same capability: parameters in, surface
// points out. The fitter and projector never inspect the variant beyond
// that contract.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// Kind tags a geometric model variant.
type Kind string

const (
	KindGCS       Kind = "gcs"       // graduated cylindrical shell (croissant CME front)
	KindShell     Kind = "shell"     // Sun-centred spherical shell segment (shock front)
	KindSpheroid  Kind = "spheroid"  // spheroid shock model
	KindEllipsoid Kind = "ellipsoid" // spheroid with independent transverse axes
)

var kindLabels = map[Kind]string{
	KindGCS:       "GCS",
	KindShell:     "Shell",
	KindSpheroid:  "Spheroid",
	KindEllipsoid: "Ellipsoid",
}

// Label returns the display name of the variant, e.g. "Spheroid". Unknown
// kinds are returned unchanged.
func (k Kind) Label() string {
	if s, ok := kindLabels[k]; ok {
		return s
	}
	return string(k)
}

// Parameter names shared across variants.
const (
	ParamLon       = "lon"
	ParamLat       = "lat"
	ParamTilt      = "tilt"
	ParamHeight    = "height"
	ParamAlpha     = "alpha"
	ParamKappa     = "kappa"
	ParamEpsilon   = "epsilon"
	ParamThickness = "thickness"
	ParamHalfWidth = "halfwidth"
)

// ErrUnknownKind is returned for an unsupported model kind.
var ErrUnknownKind = errors.New("geometry: unknown model kind")

// ParamSpec names a parameter and its physical bounds. Angles are stored
// in radians; Unit is the display unit.
type ParamSpec struct {
	Name  string
	Unit  string
	Min   float64
	Max   float64
	Angle bool
}

// Resolution sets the surface grid density: Along the model's principal
// direction (polar angle, skeleton length) and Around it.
type Resolution struct {
	Along  int
	Around int
}

// DefaultResolution is dense enough for sub-pixel silhouettes on
// 1024-pixel coronagraph frames.
var DefaultResolution = Resolution{Along: 48, Around: 48}

// ResolutionForTolerance returns a grid whose angular step does not exceed
// tol radians.
func ResolutionForTolerance(tol float64) Resolution {
	if tol <= 0 {
		return DefaultResolution
	}
	around := int(math.Ceil(2 * math.Pi / tol))
	if around < 8 {
		around = 8
	}
	if around > 720 {
		around = 720
	}
	return Resolution{Along: around/2 + 1, Around: around}
}

func (r Resolution) normalised() Resolution {
	if r.Along < 4 {
		r.Along = 4
	}
	if r.Around < 8 {
		r.Around = 8
	}
	return r
}

// Model is the capability every variant provides.
type Model interface {
	Kind() Kind
	// Params describes the parameter vector, in order.
	Params() []ParamSpec
	// Seed returns a default parameter vector for initialising fits.
	Seed() []float64
	// Surface returns HGS points covering the model's outer boundary.
	Surface(p []float64, res Resolution) ([]r3.Vector, error)
	// LeadingEdge returns the distance of the outermost point from Sun centre.
	LeadingEdge(p []float64) float64
	// Apex returns the HGS position of the leading edge.
	Apex(p []float64) r3.Vector
}

// For returns the model implementing kind.
func For(kind Kind) (Model, error) {
	switch kind {
	case KindGCS:
		return GCS{}, nil
	case KindShell:
		return Shell{}, nil
	case KindSpheroid:
		return Spheroid{}, nil
	case KindEllipsoid:
		return Ellipsoid{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
}

// Kinds lists the supported variants.
func Kinds() []Kind {
	return []Kind{KindGCS, KindShell, KindSpheroid, KindEllipsoid}
}

// IndexOf returns the position of the named parameter, or -1.
func IndexOf(m Model, name string) int {
	for i, spec := range m.Params() {
		if spec.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the parameter names of m in order.
func Names(m Model) []string {
	specs := m.Params()
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// Clamp returns a copy of p with every parameter forced inside its bounds.
func Clamp(m Model, p []float64) []float64 {
	specs := m.Params()
	out := make([]float64, len(p))
	copy(out, p)
	for i := range out {
		if i >= len(specs) {
			break
		}
		out[i] = math.Max(specs[i].Min, math.Min(specs[i].Max, out[i]))
	}
	return out
}

// BoundsError reports a parameter outside its physical range.
type BoundsError struct {
	Kind  Kind
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s parameter %s = %g outside [%g, %g]", e.Kind, e.Param, e.Value, e.Min, e.Max)
}

// ValidateParams checks the length and bounds of p for model m.
func ValidateParams(m Model, p []float64) error {
	specs := m.Params()
	if len(p) != len(specs) {
		return fmt.Errorf("%s expects %d parameters, got %d", m.Kind(), len(specs), len(p))
	}
	for i, s := range specs {
		v := p[i]
		if math.IsNaN(v) || v < s.Min || v > s.Max {
			return &BoundsError{Kind: m.Kind(), Param: s.Name, Value: v, Min: s.Min, Max: s.Max}
		}
	}
	return nil
}

// Instance is one GeometricModel: a variant, its parameter vector and the
// timestamp it describes.
type Instance struct {
	Kind   Kind
	Params []float64
	Time   time.Time
}

// Model returns the variant implementation for the instance.
func (in Instance) Model() (Model, error) { return For(in.Kind) }

// Validate checks the instance's kind, parameter count and bounds.
func (in Instance) Validate() error {
	m, err := in.Model()
	if err != nil {
		return err
	}
	return ValidateParams(m, in.Params)
}

// Param returns the value of the named parameter.
func (in Instance) Param(name string) (float64, bool) {
	m, err := in.Model()
	if err != nil {
		return 0, false
	}
	i := IndexOf(m, name)
	if i < 0 || i >= len(in.Params) {
		return 0, false
	}
	return in.Params[i], true
}

// Surface generates the instance's surface at the given resolution.
func (in Instance) Surface(res Resolution) ([]r3.Vector, error) {
	m, err := in.Model()
	if err != nil {
		return nil, err
	}
	return m.Surface(in.Params, res)
}

// LeadingEdge returns the instance's leading-edge height (Rsun).
func (in Instance) LeadingEdge() float64 {
	m, err := in.Model()
	if err != nil {
		return math.NaN()
	}
	return m.LeadingEdge(in.Params)
}

// Clone returns a deep copy.
func (in Instance) Clone() Instance {
	out := in
	out.Params = append([]float64(nil), in.Params...)
	return out
}
