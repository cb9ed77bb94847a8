package forecast

import "fmt"

// Source kinds
const (
	SourceKindDocument  = "document"   // a JSON forecast document at source_url
	SourceKindOpenMeteo = "open-meteo" // pressure-level winds from the Open-Meteo API
)

// MaxHistoryDays bounds how many days of forecasts are kept
const MaxHistoryDays = 5

// SourceConfig represents the upstream forecast source configuration
type SourceConfig struct {
	Kind                   string  `toml:"kind"`
	SourceURL              string  `toml:"source_url"`
	Schema                 string  `toml:"schema"`
	RefreshIntervalMinutes int     `toml:"refresh_interval_minutes"`
	RequestTimeoutSeconds  int     `toml:"request_timeout_seconds"`
	MaxRetries             int     `toml:"max_retries"`
	CacheExpiryMinutes     int     `toml:"cache_expiry_minutes"`
	RequestsPerMinute      float64 `toml:"requests_per_minute"`
	HistoryDays            int     `toml:"history_days"` // today plus previous days, one table each

	OpenMeteo OpenMeteoConfig `toml:"open_meteo"`
}

// DefaultSourceConfig returns the default source configuration
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Kind:                   SourceKindDocument,
		SourceURL:              "http://127.0.0.1:8081/forecast",
		Schema:                 SchemaForecasts.Name,
		RefreshIntervalMinutes: 30,
		RequestTimeoutSeconds:  10,
		MaxRetries:             2,
		CacheExpiryMinutes:     90,
		RequestsPerMinute:      6,
		HistoryDays:            3,
		OpenMeteo:              DefaultOpenMeteoConfig(),
	}
}

// ValidateConfig validates the source configuration
func ValidateConfig(config SourceConfig) error {
	switch config.Kind {
	case "", SourceKindDocument:
		if config.SourceURL == "" {
			return fmt.Errorf("source_url cannot be empty")
		}
	case SourceKindOpenMeteo:
		om := config.OpenMeteo
		if om.BaseURL == "" {
			return fmt.Errorf("open_meteo.base_url cannot be empty")
		}
		if om.Latitude < -90 || om.Latitude > 90 {
			return fmt.Errorf("open_meteo.latitude out of range: %g", om.Latitude)
		}
		if om.Longitude < -180 || om.Longitude > 180 {
			return fmt.Errorf("open_meteo.longitude out of range: %g", om.Longitude)
		}
		if om.ForecastDays < 0 || om.ForecastDays > 16 {
			return fmt.Errorf("open_meteo.forecast_days must be between 0 and 16: %d", om.ForecastDays)
		}
	default:
		return fmt.Errorf("unknown source kind: %q", config.Kind)
	}

	if _, err := SchemaByName(config.Schema); err != nil {
		return err
	}

	if config.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("refresh_interval_minutes must be greater than 0")
	}

	if config.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be greater than 0")
	}

	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be 0 or greater")
	}

	if config.CacheExpiryMinutes <= 0 {
		return fmt.Errorf("cache_expiry_minutes must be greater than 0")
	}

	if config.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be 0 (unlimited) or greater")
	}

	if config.HistoryDays < 1 || config.HistoryDays > MaxHistoryDays {
		return fmt.Errorf("history_days must be between 1 and %d", MaxHistoryDays)
	}

	return nil
}
