package forecast

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when no forecast has been loaded yet
var ErrNoData = errors.New("no forecast data available")

// ValidationError reports a malformed forecast document
type ValidationError struct {
	Hour   string // empty for document-level problems
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Hour == "" {
		return fmt.Sprintf("invalid forecast: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid forecast for hour %s: %s: %s", e.Hour, e.Field, e.Reason)
}
