package forecast

import (
	"strings"

	"github.com/google/uuid"
)

// Default table geometry: 25 bands of 160 m up to 4000 m
const (
	DefaultLevels    = 25
	DefaultMaxHeight = 4000.0
)

// TableOptions controls the altitude bands of a table
type TableOptions struct {
	Levels    int     // number of altitude bands
	MaxHeight float64 // top of the highest band (m)
	ID        string  // element id suffix; generated when empty
}

// Table is the renderer-independent result of the transform.
// Rows run from the highest band down; Cells follow Hours.
type Table struct {
	ID    string   `json:"id"`
	Hours []string `json:"hours"`
	Rows  []Row    `json:"rows"`
}

// Row is one altitude band
type Row struct {
	Level    int     `json:"level"`
	Altitude float64 `json:"altitude"`
	Cells    []Cell  `json:"cells"`
}

// Cell is the value of one (altitude band, hour) pair. A Missing cell carries
// no wind data: the altitude is outside that hour's grid.
type Cell struct {
	Missing       bool    `json:"missing"`
	BoundaryLayer bool    `json:"boundary_layer"`
	WindSpeed     float64 `json:"wind_speed"`
	WindAngle     float64 `json:"wind_angle"`
	ArrowSize     float64 `json:"arrow_size"`
	ArrowColor    string  `json:"arrow_color"`
}

// BandAltitudes returns the centre altitude of each band, lowest first
func BandAltitudes(levels int, maxHeight float64) []float64 {
	alts := make([]float64, levels)
	for k := range alts {
		alts[k] = maxHeight / float64(levels) * (float64(k) + 0.5)
	}
	return alts
}

// BuildTable evaluates every (band, hour) cell of the dataset
func BuildTable(ds *Dataset, opts TableOptions) *Table {
	if opts.Levels <= 0 {
		opts.Levels = DefaultLevels
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxHeight
	}
	if opts.ID == "" {
		opts.ID = newTableID()
	}

	alts := BandAltitudes(opts.Levels, opts.MaxHeight)

	table := &Table{
		ID:    opts.ID,
		Hours: append([]string(nil), ds.Hours...),
		Rows:  make([]Row, 0, opts.Levels),
	}

	for k := opts.Levels - 1; k >= 0; k-- {
		row := Row{
			Level:    k,
			Altitude: alts[k],
			Cells:    make([]Cell, len(ds.Hours)),
		}
		for j, hour := range ds.Hours {
			row.Cells[j] = EvaluateCell(ds.Frames[hour], alts[k])
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// EvaluateCell computes a single cell for an altitude within one hour's frame
func EvaluateCell(frame *HourlyFrame, altitude float64) Cell {
	level, ok := frame.VirtualLevel(altitude)
	if !ok {
		return Cell{Missing: true}
	}

	u, v := frame.WindAt(level)
	speed := WindSpeed(u, v)

	return Cell{
		BoundaryLayer: altitude < frame.PBLH,
		WindSpeed:     speed,
		WindAngle:     WindAngle(u, v),
		ArrowSize:     WindArrowSize(speed),
		ArrowColor:    WindArrowColor(speed),
	}
}

// CellAt returns the cell for a band level and hour index, if present
func (t *Table) CellAt(level, hourIdx int) (Cell, bool) {
	for _, row := range t.Rows {
		if row.Level == level {
			if hourIdx < 0 || hourIdx >= len(row.Cells) {
				return Cell{}, false
			}
			return row.Cells[hourIdx], true
		}
	}
	return Cell{}, false
}

func newTableID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}
