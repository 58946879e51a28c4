// Package units provides shared physical constants, angle conversions and
// speed unit validation for CME kinematics.
package units

import "math"

// Physical constants. Distances inside the module are expressed in solar
// radii; these convert at the edges.
const (
	SolarRadiusKm = 695700.0
	AUKm          = 149597870.7
	AURsun        = AUKm / SolarRadiusKm
)

// Speed unit constants
const (
	KMS   = "kms"   // kilometres per second (CME convention)
	MPS   = "mps"   // metres per second
	RSUNH = "rsunh" // solar radii per hour
	RSUNS = "rsuns" // solar radii per second (internal)
	KMH   = "kmh"   // kilometres per hour
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{KMS, MPS, RSUNH, RSUNS, KMH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "kms, mps, rsunh, rsuns, kmh"
}

// ConvertSpeed converts a speed from km/s to the target units.
// Kinematic profiles report speeds in km/s.
func ConvertSpeed(speedKMS float64, targetUnits string) float64 {
	switch targetUnits {
	case KMS:
		return speedKMS
	case MPS:
		return speedKMS * 1000
	case RSUNH:
		return speedKMS * 3600 / SolarRadiusKm
	case RSUNS:
		return speedKMS / SolarRadiusKm
	case KMH:
		return speedKMS * 3600
	default:
		return speedKMS
	}
}

// RsunPerSecondToKMS converts a speed in Rsun/s to km/s.
func RsunPerSecondToKMS(v float64) float64 { return v * SolarRadiusKm }

// RsunPerSecond2ToMPS2 converts an acceleration in Rsun/s² to m/s².
func RsunPerSecond2ToMPS2(a float64) float64 { return a * SolarRadiusKm * 1000 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180.0 / math.Pi }

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180.0 }

// ArcsecToRad converts arcseconds to radians.
func ArcsecToRad(arcsec float64) float64 { return arcsec * math.Pi / (180.0 * 3600.0) }

// RadToArcsec converts radians to arcseconds.
func RadToArcsec(rad float64) float64 { return rad * 180.0 * 3600.0 / math.Pi }

// WrapPi normalises an angle to [-π, π).
func WrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Wrap2Pi normalises an angle to [0, 2π).
func Wrap2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
