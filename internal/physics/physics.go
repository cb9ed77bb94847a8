package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	R         = 287.058  // Specific gas constant for dry air (J/(kg·K))
	G         = 9.80665  // Gravity (m/s^2)
	T0        = 288.15   // Standard Sea Level Temperature (K)
	P0        = 1013.25  // Standard Sea Level Pressure (hPa)
	L         = 0.0065   // Temperature Lapse Rate (K/m) in Troposphere
	MsToKnots = 1.94384  // Conversion factor from m/s to Knots
	KmhToMs   = 1 / 3.6  // Conversion factor from km/h to m/s
	FeetPerM  = 3.280840 // Feet in a metre

	// ISA Layer Boundaries
	TropopauseAltM    = 11000.0 // 11 km
	StratosphereTempK = 216.65  // Constant temperature in Stratosphere
	TropopausePress   = 226.32  // Pressure at Tropopause (hPa)
)

// KmhToKnots converts a speed in km/h to knots
func KmhToKnots(kmh float64) float64 {
	return kmh * KmhToMs * MsToKnots
}

// MetersToFeet converts an altitude in metres to feet
func MetersToFeet(m float64) float64 {
	return m * FeetPerM
}

// AltitudeToPressure converts an altitude in metres to ISA pressure in hPa.
// Troposphere and lower stratosphere are supported; negative altitudes clamp to sea level.
func AltitudeToPressure(altM float64) float64 {
	if altM < 0 {
		altM = 0
	}

	if altM <= TropopauseAltM {
		// P = P0 * (1 - L*h/T0)^(g/RL)
		exponent := G / (R * L)
		base := 1 - (L * altM / T0)
		return P0 * math.Pow(base, exponent)
	}

	// P = P_trop * exp( -g*(h - h_trop) / (R * T_strat) )
	relAlt := altM - TropopauseAltM
	exponent := -(G * relAlt) / (R * StratosphereTempK)
	return TropopausePress * math.Exp(exponent)
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West), or false if the model cannot be evaluated
func CalculateMagneticVariation(lat, lon, altM float64, date time.Time) (float64, bool) {
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, false
	}

	return mag.D(), true
}
