package forecast

import "math"

// VirtualLevel returns the fractional index of altitude in the grid z.
//
// The grid is scanned upwards for the first level strictly above altitude.
// If there is none, or if it is the first level, the altitude is out of
// range and ok is false. The bracketing pair always satisfies
// z[i-1] <= altitude < z[i], so equal adjacent altitudes are skipped over
// rather than divided by.
func VirtualLevel(altitude float64, z []float64) (level float64, ok bool) {
	for i, zi := range z {
		if altitude < zi {
			if i == 0 {
				return 0, false
			}
			return float64(i-1) + (altitude-z[i-1])/(zi-z[i-1]), true
		}
	}
	return 0, false
}

// Interpolate linearly interpolates values at a virtual level. The level must
// come from VirtualLevel on the grid values is aligned with.
func Interpolate(level float64, values []float64) float64 {
	lo := math.Floor(level)
	hi := math.Ceil(level)
	vlo := values[int(lo)]
	return vlo + (level-lo)*(values[int(hi)]-vlo)
}
