package render

import (
	"fmt"
	"html/template"
	"math"
	"strconv"

	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/internal/physics"
)

// ArrowGlyph is rotated by the wind angle in every cell
const ArrowGlyph = "⮕"

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"cellID":     CellID,
		"arrowStyle": ArrowStyle,
		"altitude":   formatAltitude,
		"pressure":   formatPressure,
		"feet":       formatFeet,
		"knots":      formatKnots,
		"round":      roundSpeed,
		"coord":      formatCoord,
		"deg":        formatDegrees,
		"arrow":      func() string { return ArrowGlyph },
	}
}

// CellID returns the element id of the (level, hour) cell of a table
func CellID(level, hourIdx int, tableID string) string {
	return fmt.Sprintf("l%dh%d_%s", level, hourIdx, tableID)
}

// ArrowStyle returns the inline CSS of a cell's arrow. The values are numbers
// and colours from a fixed ramp, so the result is safe to emit as-is.
func ArrowStyle(cell forecast.Cell) template.CSS {
	return template.CSS(fmt.Sprintf("transform: rotate(%sdeg); font-size: %spx; color: %s",
		strconv.FormatFloat(cell.WindAngle, 'f', 2, 64),
		strconv.FormatFloat(cell.ArrowSize, 'f', 2, 64),
		cell.ArrowColor))
}

func formatAltitude(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func formatPressure(m float64) string {
	return strconv.FormatFloat(physics.AltitudeToPressure(m), 'f', 0, 64)
}

func formatFeet(m float64) string {
	return strconv.FormatFloat(physics.MetersToFeet(m), 'f', 0, 64)
}

func formatKnots(kmh float64) string {
	return strconv.FormatFloat(physics.KmhToKnots(kmh), 'f', 1, 64)
}

func roundSpeed(kmh float64) int {
	return int(math.Round(kmh))
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func formatDegrees(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + "°"
}
