package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode parses an upstream forecast document using the given schema.
// Hour order is taken from the document, and every frame is validated:
// a non-empty, non-decreasing z grid, and u/v arrays of the same length.
func Decode(data []byte, schema Schema) (*Dataset, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding forecast document: %w", err)
	}

	root, ok := doc[schema.Root]
	if !ok || isNull(root) {
		return nil, &ValidationError{Field: schema.Root, Reason: "missing"}
	}

	ds := &Dataset{
		Frames: make(map[string]*HourlyFrame),
		Raw:    json.RawMessage(data),
	}

	if err := decodeOptionalFloat(doc, "lat", &ds.Lat); err != nil {
		return nil, err
	}
	if err := decodeOptionalFloat(doc, "lon", &ds.Lon); err != nil {
		return nil, err
	}

	// Walk the root object token by token, map decoding would lose key order
	dec := json.NewDecoder(bytes.NewReader(root))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", schema.Root, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &ValidationError{Field: schema.Root, Reason: "must be an object keyed by hour"}
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", schema.Root, err)
		}
		hour, _ := tok.(string)

		var fields map[string]json.RawMessage
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("error decoding hour %s: %w", hour, err)
		}

		if _, dup := ds.Frames[hour]; dup {
			return nil, &ValidationError{Hour: hour, Field: schema.Root, Reason: "duplicate hour"}
		}

		frame, err := decodeFrame(hour, fields, schema)
		if err != nil {
			return nil, err
		}

		ds.Hours = append(ds.Hours, hour)
		ds.Frames[hour] = frame
	}

	if len(ds.Hours) == 0 {
		return nil, &ValidationError{Field: schema.Root, Reason: "no hours"}
	}

	return ds, nil
}

func decodeFrame(hour string, fields map[string]json.RawMessage, schema Schema) (*HourlyFrame, error) {
	frame := &HourlyFrame{}

	if err := decodeField(hour, fields, schema.Z, &frame.Z); err != nil {
		return nil, err
	}
	if err := decodeField(hour, fields, schema.PBLH, &frame.PBLH); err != nil {
		return nil, err
	}
	if err := decodeField(hour, fields, schema.U, &frame.U); err != nil {
		return nil, err
	}
	if err := decodeField(hour, fields, schema.V, &frame.V); err != nil {
		return nil, err
	}

	if err := validateFrame(hour, frame, schema); err != nil {
		return nil, err
	}
	return frame, nil
}

func validateFrame(hour string, frame *HourlyFrame, schema Schema) error {
	n := len(frame.Z)
	if n == 0 {
		return &ValidationError{Hour: hour, Field: schema.Z, Reason: "empty altitude grid"}
	}
	for i := 1; i < n; i++ {
		if frame.Z[i] < frame.Z[i-1] {
			return &ValidationError{Hour: hour, Field: schema.Z,
				Reason: fmt.Sprintf("altitudes decrease at level %d (%g < %g)", i, frame.Z[i], frame.Z[i-1])}
		}
	}
	if len(frame.U) != n {
		return &ValidationError{Hour: hour, Field: schema.U,
			Reason: fmt.Sprintf("length %d does not match %s length %d", len(frame.U), schema.Z, n)}
	}
	if len(frame.V) != n {
		return &ValidationError{Hour: hour, Field: schema.V,
			Reason: fmt.Sprintf("length %d does not match %s length %d", len(frame.V), schema.Z, n)}
	}
	return nil
}

func decodeField(hour string, fields map[string]json.RawMessage, name string, target interface{}) error {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return &ValidationError{Hour: hour, Field: name, Reason: "missing"}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &ValidationError{Hour: hour, Field: name, Reason: err.Error()}
	}
	return nil
}

func decodeOptionalFloat(doc map[string]json.RawMessage, name string, target **float64) error {
	raw, ok := doc[name]
	if !ok || isNull(raw) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return &ValidationError{Field: name, Reason: err.Error()}
	}
	*target = &v
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
