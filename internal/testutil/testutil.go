// Package testutil provides shared test utilities and fixtures.
//
// This package centralises synthetic observers and marks so the fitting
// and kinematics tests build their scenarios the same way.
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/coronafit/internal/frames"
	"github.com/banshee-data/coronafit/internal/units"
)

// Epoch is the reference time used by synthetic scenarios.
var Epoch = time.Date(2021, 10, 28, 15, 30, 0, 0, time.UTC)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test if got and want differ by more than rel
// relative to want (absolute when want is zero).
func AssertClose(t testing.TB, name string, got, want, rel float64) {
	t.Helper()
	tol := rel * math.Abs(want)
	if want == 0 {
		tol = rel
	}
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", name, got, want, tol)
	}
}

// Plane returns a 1024×1024 coronagraph plane with the given plate scale
// in arcseconds per pixel, centred on the Sun.
func Plane(arcsecPerPixel float64) frames.ImagePlane {
	return frames.ImagePlane{
		PlateScale: units.ArcsecToRad(arcsecPerPixel),
		RefPixelX:  511.5,
		RefPixelY:  511.5,
	}
}

// Observer builds an observer at heliographic lon/lat (degrees) and
// distance (Rsun) at time t.
func Observer(t testing.TB, id string, lonDeg, latDeg, distance float64, at time.Time, plane frames.ImagePlane) frames.Observer {
	t.Helper()
	pos := frames.SphericalToCartesian(units.Rad(lonDeg), units.Rad(latDeg), distance)
	o, err := frames.NewObserver(id, at, pos, plane)
	if err != nil {
		t.Fatalf("observer %s: %v", id, err)
	}
	return o
}

// Earth returns an Earth-distance observer on the Sun-Earth line, with a
// LASCO C3-like plate scale.
func Earth(t testing.TB, at time.Time) frames.Observer {
	t.Helper()
	return Observer(t, "earth", 0, 0, units.AURsun, at, Plane(56))
}

// Sample returns every stride-th pixel of outline, starting at offset.
func Sample(outline []frames.Pixel, stride, offset int) []frames.Pixel {
	if stride < 1 {
		stride = 1
	}
	var out []frames.Pixel
	for i := offset; i < len(outline); i += stride {
		out = append(out, outline[i])
	}
	return out
}
