// Package frames converts positions between heliocentric reference frames
// and projects them into an observer's image plane.
//
// Positions are r3.Vector values in solar radii. The canonical storage
// frame is Heliographic Stonyhurst (HGS): z along the solar rotation axis,
// x toward the projection of Earth onto the solar equator. Heliocentric
// Inertial (HCI) and Heliographic Carrington (HGC) share the same z axis
// and differ only by a time-dependent rotation about it.
package frames

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// Frame identifies a heliocentric coordinate frame.
type Frame string

const (
	// HGS is Heliographic Stonyhurst: Earth-referenced, rotates with Earth's orbit.
	HGS Frame = "HGS"
	// HCI is Heliocentric Inertial: x toward the ascending node of the solar
	// equator on the ecliptic.
	HCI Frame = "HCI"
	// HGC is Heliographic Carrington: rotates with the Sun.
	HGC Frame = "HGC"
)

// ParseFrame returns the Frame named by s.
func ParseFrame(s string) (Frame, error) {
	switch Frame(s) {
	case HGS, HCI, HGC:
		return Frame(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFrame, s)
}

// Convert rotates v from one heliocentric frame to another at time t.
// All three frames share the solar rotation axis, so conversion is a
// rotation about z by the difference of the frames' longitude offsets
// relative to HCI.
func Convert(v r3.Vector, from, to Frame, t time.Time) (r3.Vector, error) {
	if from == to {
		if _, err := ParseFrame(string(from)); err != nil {
			return r3.Vector{}, err
		}
		return v, nil
	}
	eph := EarthEphemeris(t)
	fromOff, err := longitudeOffset(from, eph)
	if err != nil {
		return r3.Vector{}, err
	}
	toOff, err := longitudeOffset(to, eph)
	if err != nil {
		return r3.Vector{}, err
	}
	// lon_to = lon_from + fromOff - toOff
	return rotateZ(v, fromOff-toOff), nil
}

// ConvertLonLat converts a heliographic longitude/latitude (radians)
// between frames. Latitude is frame-invariant.
func ConvertLonLat(lon, lat float64, from, to Frame, t time.Time) (float64, float64, error) {
	v, err := Convert(SphericalToCartesian(lon, lat, 1), from, to, t)
	if err != nil {
		return 0, 0, err
	}
	lon2, lat2, _ := CartesianToSpherical(v)
	return lon2, lat2, nil
}

// longitudeOffset returns the HCI longitude of the frame's prime meridian,
// so that lon_HCI = lon_frame + offset.
func longitudeOffset(f Frame, eph Ephemeris) (float64, error) {
	switch f {
	case HCI:
		return 0, nil
	case HGS:
		return eph.HCILongitude, nil
	case HGC:
		return eph.HCILongitude - eph.CarringtonL0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFrame, string(f))
}

// SphericalToCartesian converts longitude and latitude (radians) and radius
// into a Cartesian vector. Longitude is measured from +x toward +y.
func SphericalToCartesian(lon, lat, r float64) r3.Vector {
	cosLat := math.Cos(lat)
	return r3.Vector{
		X: r * cosLat * math.Cos(lon),
		Y: r * cosLat * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// CartesianToSpherical returns longitude in (-π, π], latitude and radius.
func CartesianToSpherical(v r3.Vector) (lon, lat, r float64) {
	r = v.Norm()
	if r == 0 {
		return 0, 0, 0
	}
	lon = math.Atan2(v.Y, v.X)
	lat = math.Asin(clamp(v.Z/r, -1, 1))
	return lon, lat, r
}

func rotateZ(v r3.Vector, angle float64) r3.Vector {
	s, c := math.Sincos(angle)
	return r3.Vector{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
