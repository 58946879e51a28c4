package frames

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/coronafit/internal/units"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlane() ImagePlane {
	return ImagePlane{
		PlateScale: units.ArcsecToRad(56),
		RefPixelX:  511.5,
		RefPixelY:  511.5,
	}
}

func earthLikeObserver(t *testing.T) Observer {
	t.Helper()
	o, err := NewObserver("earth", testEpoch, r3.Vector{X: 215}, testPlane())
	require.NoError(t, err)
	return o
}

func TestObserver_SunCentreAtReferencePixel(t *testing.T) {
	o := earthLikeObserver(t)
	px, err := o.ToPixel(r3.Vector{})
	require.NoError(t, err)
	assert.InDelta(t, 511.5, px.X, 1e-9)
	assert.InDelta(t, 511.5, px.Y, 1e-9)
}

func TestObserver_LimbOrientation(t *testing.T) {
	o := earthLikeObserver(t)

	west, err := o.ToHelioprojective(r3.Vector{Y: 1})
	require.NoError(t, err)
	assert.Greater(t, west.Tx, 0.0, "HGS +y is solar west")
	assert.InDelta(t, 0, west.Ty, 1e-12)
	assert.InDelta(t, math.Atan2(1, 215), west.Tx, 1e-12)

	north, err := o.ToPixel(r3.Vector{Z: 1})
	require.NoError(t, err)
	assert.Greater(t, north.Y, 511.5)
	assert.InDelta(t, 511.5, north.X, 1e-9)
}

func TestObserver_RollRoundTrip(t *testing.T) {
	plane := testPlane()
	plane.Roll = units.Rad(17)
	plane.RefTx = units.ArcsecToRad(30)
	plane.RefTy = units.ArcsecToRad(-12)
	o, err := NewObserver("soho", testEpoch, r3.Vector{X: 213, Y: 4, Z: 10}, plane)
	require.NoError(t, err)

	hp := Helioprojective{Tx: units.ArcsecToRad(2100), Ty: units.ArcsecToRad(-800)}
	back := o.PixelToHelioprojective(o.HelioprojectiveToPixel(hp))
	assert.InDelta(t, hp.Tx, back.Tx, 1e-12)
	assert.InDelta(t, hp.Ty, back.Ty, 1e-12)
}

func TestObserver_SingularProjection(t *testing.T) {
	o := earthLikeObserver(t)
	_, err := o.ToPixel(o.Position)
	var sing *SingularProjectionError
	require.True(t, errors.As(err, &sing), "got %v", err)
	assert.Equal(t, "earth", sing.Observer)

	_, err = o.Project([]r3.Vector{{X: 1}, o.Position})
	assert.True(t, errors.As(err, &sing))
}

func TestObserver_InvalidPosition(t *testing.T) {
	_, err := NewObserver("nowhere", testEpoch, r3.Vector{}, testPlane())
	var missing *MissingEphemerisError
	assert.True(t, errors.As(err, &missing))

	_, err = NewObserver("flat", testEpoch, r3.Vector{X: 215}, ImagePlane{})
	assert.Error(t, err)

	assert.Error(t, Observer{ID: "raw"}.Validate())
}

func TestObserver_InvertOntoPlaneOfSky(t *testing.T) {
	o := earthLikeObserver(t)
	p := r3.Vector{X: 0, Y: 2, Z: 1}
	px, err := o.ToPixel(p)
	require.NoError(t, err)

	got, err := o.InvertOntoPlaneOfSky(px)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.Sub(p).Norm(), 1e-9)
}

func TestObserver_InvertOntoSphere(t *testing.T) {
	o := earthLikeObserver(t)
	p := r3.Vector{X: 1, Y: 2, Z: 2} // radius 3, near side
	px, err := o.ToPixel(p)
	require.NoError(t, err)

	got, err := o.InvertOntoSphere(px, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.Sub(p).Norm(), 1e-9)

	far := Pixel{X: 511.5 + 2000, Y: 511.5}
	_, err = o.InvertOntoSphere(far, 1)
	assert.ErrorIs(t, err, ErrNoIntersection)
}

func TestObserver_LineOfSightOccluded(t *testing.T) {
	o := earthLikeObserver(t)
	tests := []struct {
		name string
		p    r3.Vector
		want bool
	}{
		{"behind the disk", r3.Vector{X: -2}, true},
		{"in front of the disk", r3.Vector{X: 2}, false},
		{"far side off limb", r3.Vector{X: -2, Y: 3}, false},
		{"inside the Sun", r3.Vector{X: 0.5}, true},
		{"plane of sky above limb", r3.Vector{Z: 1.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.LineOfSightOccluded(tt.p, 1))
		})
	}
}

func TestNewObserverFromFrame(t *testing.T) {
	earthHGS := EarthPosition(testEpoch)
	earthHCI, err := Convert(earthHGS, HGS, HCI, testEpoch)
	require.NoError(t, err)

	o, err := NewObserverFromFrame("earth", testEpoch, earthHCI, HCI, testPlane())
	require.NoError(t, err)
	assert.InDelta(t, 0, o.Position.Sub(earthHGS).Norm(), 1e-9)

	_, err = NewObserverFromFrame("earth", testEpoch, earthHCI, Frame("GEO"), testPlane())
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestObserver_InFront(t *testing.T) {
	o := earthLikeObserver(t)
	assert.True(t, o.InFront(r3.Vector{}))
	assert.False(t, o.InFront(r3.Vector{X: 300}))
	assert.Equal(t, 215.0, o.Distance())
}
