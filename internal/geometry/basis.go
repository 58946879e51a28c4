package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// apexFrame is the local frame of a model: Z points radially along the
// apex direction, Y is the tilted axis in the plane of the sky (the GCS
// leg-separation axis) and X completes a right-handed set.
type apexFrame struct {
	X, Y, Z r3.Vector
}

// newApexFrame builds the local frame for an apex at heliographic lon/lat
// (radians) with the Y axis rotated by tilt from solar west toward north.
func newApexFrame(lon, lat, tilt float64) apexFrame {
	sLon, cLon := math.Sincos(lon)
	sLat, cLat := math.Sincos(lat)
	radial := r3.Vector{X: cLat * cLon, Y: cLat * sLon, Z: sLat}
	west := r3.Vector{X: -sLon, Y: cLon}
	north := r3.Vector{X: -sLat * cLon, Y: -sLat * sLon, Z: cLat}

	sT, cT := math.Sincos(tilt)
	y := west.Mul(cT).Add(north.Mul(sT))
	return apexFrame{X: y.Cross(radial), Y: y, Z: radial}
}

// toHGS maps local coordinates to HGS.
func (f apexFrame) toHGS(x, y, z float64) r3.Vector {
	return f.X.Mul(x).Add(f.Y.Mul(y)).Add(f.Z.Mul(z))
}
