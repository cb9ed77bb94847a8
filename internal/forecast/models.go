package forecast

import "encoding/json"

// Dataset is a decoded forecast document: one HourlyFrame per hour label.
// Hours keeps the document order, which is also the table column order.
type Dataset struct {
	Hours  []string                `json:"hours"`
	Frames map[string]*HourlyFrame `json:"frames"`

	// Location of the sounding, when the upstream document carries it
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	// Raw is the upstream document as received
	Raw json.RawMessage `json:"-"`
}

// HourlyFrame holds one hour of a sounding. Z, U and V share the same length.
type HourlyFrame struct {
	Z    []float64 `json:"z"`    // Altitude of each model level (m)
	PBLH float64   `json:"pblh"` // Planetary boundary-layer height (m)
	U    []float64 `json:"u"`    // East-west wind component (m/s)
	V    []float64 `json:"v"`    // North-south wind component (m/s)
}

// Frame returns the frame for an hour label
func (d *Dataset) Frame(hour string) (*HourlyFrame, bool) {
	f, ok := d.Frames[hour]
	return f, ok
}

// HasLocation reports whether the dataset carries the sounding location
func (d *Dataset) HasLocation() bool {
	return d.Lat != nil && d.Lon != nil
}

// Levels returns the number of grid levels
func (f *HourlyFrame) Levels() int {
	return len(f.Z)
}

// VirtualLevel maps an altitude to a fractional level of this frame's grid
func (f *HourlyFrame) VirtualLevel(altitude float64) (float64, bool) {
	return VirtualLevel(altitude, f.Z)
}

// WindAt interpolates the wind components at a virtual level
func (f *HourlyFrame) WindAt(level float64) (u, v float64) {
	return Interpolate(level, f.U), Interpolate(level, f.V)
}
