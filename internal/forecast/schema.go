package forecast

import "fmt"

// Schema names the JSON fields of an upstream forecast document. Two
// variants exist in the wild; they differ only in naming.
type Schema struct {
	Name string
	Root string // top-level object holding hour -> frame
	Z    string
	PBLH string
	U    string
	V    string
}

var (
	// SchemaForecasts is the forecast-service layout:
	// {"forecasts": {hour: {"z", "pblh", "u", "v"}}}
	SchemaForecasts = Schema{Name: "forecasts", Root: "forecasts", Z: "z", PBLH: "pblh", U: "u", V: "v"}

	// SchemaData is the older history layout:
	// {"data": {hour: {"z", "pblh", "umet", "vmet"}}}
	SchemaData = Schema{Name: "data", Root: "data", Z: "z", PBLH: "pblh", U: "umet", V: "vmet"}
)

// SchemaByName returns a known schema. An empty name selects SchemaForecasts.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case "", SchemaForecasts.Name:
		return SchemaForecasts, nil
	case SchemaData.Name:
		return SchemaData, nil
	default:
		return Schema{}, fmt.Errorf("unknown forecast schema: %q (expected %q or %q)", name, SchemaForecasts.Name, SchemaData.Name)
	}
}
