package frames

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"

	"github.com/banshee-data/coronafit/internal/units"
)

const (
	// Carrington rotation epoch and sidereal period (days).
	carringtonEpochJD = 2398220.0
	carringtonPeriod  = 25.38

	// solarEquatorInclination is the inclination of the solar equator to
	// the ecliptic (degrees).
	solarEquatorInclination = 7.25
)

// Ephemeris describes Earth's position as seen from the Sun at one instant.
type Ephemeris struct {
	Time time.Time
	// HCILongitude is Earth's longitude in the HCI frame (radians).
	HCILongitude float64
	// B0 is Earth's heliographic latitude (radians).
	B0 float64
	// DistanceRsun is the Sun-Earth distance in solar radii.
	DistanceRsun float64
	// CarringtonL0 is the Carrington longitude of the sub-Earth point (radians).
	CarringtonL0 float64
}

// JulianDate converts t to a Julian Date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// EarthEphemeris computes Earth's heliocentric position from the
// low-precision solar theory (Meeus, Astronomical Algorithms ch. 25)
// and rotates it into the solar equator frame (ch. 29). Accuracy is
// ~0.01°, well below the marking precision of an operator on a
// coronagraph image.
func EarthEphemeris(t time.Time) Ephemeris {
	jd := JulianDate(t)
	T := base.J2000Century(jd)
	sunLon, _ := solar.True(T)

	// Earth as seen from the Sun, in ecliptic coordinates.
	earthLon := sunLon.Rad() + math.Pi
	earth := r3.Vector{X: math.Cos(earthLon), Y: math.Sin(earthLon)}

	node := units.Rad(73.6667 + 1.3958333*(jd-2396758.0)/36525.0)
	incl := units.Rad(solarEquatorInclination)
	xAxis, yAxis, zAxis := solarEquatorBasis(node, incl)

	hciLon := math.Atan2(earth.Dot(yAxis), earth.Dot(xAxis))
	b0 := math.Asin(clamp(earth.Dot(zAxis), -1, 1))

	theta := units.Rad((jd - carringtonEpochJD) * 360.0 / carringtonPeriod)

	return Ephemeris{
		Time:         t,
		HCILongitude: units.Wrap2Pi(hciLon),
		B0:           b0,
		DistanceRsun: solar.Radius(T) * units.AURsun,
		CarringtonL0: units.Wrap2Pi(hciLon - theta),
	}
}

// EarthPosition returns Earth's position in the HGS frame (solar radii).
func EarthPosition(t time.Time) r3.Vector {
	eph := EarthEphemeris(t)
	return SphericalToCartesian(0, eph.B0, eph.DistanceRsun)
}

// solarEquatorBasis returns the HCI axes expressed in ecliptic coordinates
// for a solar equator with the given ascending node and inclination.
func solarEquatorBasis(node, incl float64) (x, y, z r3.Vector) {
	sn, cn := math.Sincos(node)
	si, ci := math.Sincos(incl)
	x = r3.Vector{X: cn, Y: sn}
	z = r3.Vector{X: si * sn, Y: -si * cn, Z: ci}
	y = z.Cross(x)
	return x, y, z
}
