package forecast

import "math"

const (
	msToKmh      = 3.6
	maxArrowSize = 40.0
)

// arrow colour ramp, speeds in km/h
var (
	arrowThresholds = []float64{3, 6, 10, 15, 20, 25, 30, 35, 40}
	arrowColors     = []string{"black", "#0080ff", "#00ffff", "#00ff80", "#00ff00", "#80ff00", "#ffff00", "#ffbf00", "#ff8000"}
	arrowColorMax   = "#ff0000"
)

// WindSpeed returns the wind magnitude in km/h from u/v components in m/s
func WindSpeed(u, v float64) float64 {
	return msToKmh * math.Sqrt(u*u+v*v)
}

// WindAngle returns the arrow rotation in degrees for a ⮕ glyph.
// Note the (u, v) argument order and the -90 offset.
func WindAngle(u, v float64) float64 {
	return math.Atan2(u, v)*180/math.Pi - 90
}

// WindArrowSize returns the arrow font size in px for a speed in km/h
func WindArrowSize(speed float64) float64 {
	return math.Min(maxArrowSize, 10+speed/60*35)
}

// WindArrowColor returns the arrow colour for a speed in km/h
func WindArrowColor(speed float64) string {
	for i, threshold := range arrowThresholds {
		if speed < threshold {
			return arrowColors[i]
		}
	}
	return arrowColorMax
}
