package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maximepiton/raspit/pkg/logger"
)

// Hour labels; multi-day soundings carry the date
const (
	hourLayout    = "15:04"
	dayHourLayout = "01-02 15:04"
)

// Pressure levels requested from Open-Meteo, surface first
var openMeteoLevels = []int{1000, 975, 950, 925, 900, 850, 800, 700, 600, 500}

// OpenMeteoConfig locates the sounding when the source is the Open-Meteo API
type OpenMeteoConfig struct {
	BaseURL      string  `toml:"base_url"`
	Latitude     float64 `toml:"latitude"`
	Longitude    float64 `toml:"longitude"`
	ForecastDays int     `toml:"forecast_days"`
}

// DefaultOpenMeteoConfig returns the default Open-Meteo configuration
func DefaultOpenMeteoConfig() OpenMeteoConfig {
	return OpenMeteoConfig{
		BaseURL:      "https://api.open-meteo.com/v1/gfs",
		Latitude:     44.4636,
		Longitude:    1.3722,
		ForecastDays: 1,
	}
}

// OpenMeteoSource builds datasets from Open-Meteo pressure-level winds.
// Each pressure level becomes a grid level at its geopotential height.
type OpenMeteoSource struct {
	config OpenMeteoConfig
	client *Client
	logger *logger.Logger
}

// NewOpenMeteoSource creates a source sharing the client's retry and rate limit
func NewOpenMeteoSource(config SourceConfig, logger *logger.Logger) (*OpenMeteoSource, error) {
	client, err := NewClient(config, logger)
	if err != nil {
		return nil, err
	}
	return &OpenMeteoSource{
		config: config.OpenMeteo,
		client: client,
		logger: logger.Named("open-meteo"),
	}, nil
}

type openMeteoResponse struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Elevation float64                    `json:"elevation"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

// Fetch requests the sounding and converts it to a dataset
func (s *OpenMeteoSource) Fetch(ctx context.Context) (*Dataset, error) {
	resp, err := s.fetch(ctx, 0)
	if err != nil {
		return nil, err
	}

	layout := hourLayout
	if s.config.ForecastDays > 1 {
		layout = dayHourLayout
	}
	ds, _, err := s.toDataset(resp, layout)
	if err != nil {
		s.logger.Error("Open-Meteo response rejected", logger.Error(err))
		return nil, err
	}

	s.logger.Info("Open-Meteo sounding updated",
		logger.Float64("lat", resp.Latitude),
		logger.Float64("lon", resp.Longitude),
		logger.Int("hours", len(ds.Hours)))
	return ds, nil
}

// FetchHistory requests days-1 past days along with the forecast and splits
// the sounding into one dataset per UTC day, latest day first
func (s *OpenMeteoSource) FetchHistory(ctx context.Context, days int) ([]*Dataset, error) {
	if days <= 1 {
		ds, err := s.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return []*Dataset{ds}, nil
	}

	resp, err := s.fetch(ctx, days-1)
	if err != nil {
		return nil, err
	}

	// Labels must stay unique across days until the split
	ds, times, err := s.toDataset(resp, dayHourLayout)
	if err != nil {
		s.logger.Error("Open-Meteo response rejected", logger.Error(err))
		return nil, err
	}

	history, err := splitDays(ds, times, days)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Open-Meteo soundings updated",
		logger.Float64("lat", resp.Latitude),
		logger.Float64("lon", resp.Longitude),
		logger.Int("days", len(history)))
	return history, nil
}

func (s *OpenMeteoSource) fetch(ctx context.Context, pastDays int) (*openMeteoResponse, error) {
	body, err := s.client.fetchWithRetry(ctx, s.requestURL(pastDays))
	if err != nil {
		return nil, err
	}

	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ValidationError{Field: "document", Reason: "not valid JSON: " + err.Error()}
	}
	return &resp, nil
}

func (s *OpenMeteoSource) requestURL(pastDays int) string {
	var params []string
	for _, lvl := range openMeteoLevels {
		suffix := fmt.Sprintf("%dhPa", lvl)
		params = append(params, "geopotential_height_"+suffix, "windspeed_"+suffix, "winddirection_"+suffix)
	}
	params = append(params, "boundary_layer_height")

	days := s.config.ForecastDays
	if days <= 0 {
		days = 1
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.config.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(s.config.Longitude, 'f', 4, 64))
	q.Set("hourly", strings.Join(params, ","))
	q.Set("wind_speed_unit", "ms")
	q.Set("timezone", "UTC")
	q.Set("forecast_days", strconv.Itoa(days))
	if pastDays > 0 {
		q.Set("past_days", strconv.Itoa(pastDays))
	}

	return s.config.BaseURL + "?" + q.Encode()
}

// toDataset converts the response, labelling hours with layout. It also
// returns the timestamp of each hour.
func (s *OpenMeteoSource) toDataset(resp *openMeteoResponse, layout string) (*Dataset, []time.Time, error) {
	var times []string
	if err := decodeField("", resp.Hourly, "time", &times); err != nil {
		return nil, nil, err
	}
	if len(times) == 0 {
		return nil, nil, &ValidationError{Field: "hourly.time", Reason: "no hours"}
	}

	series := func(name string) ([]*float64, error) {
		var values []*float64
		if err := decodeField("", resp.Hourly, name, &values); err != nil {
			return nil, err
		}
		if len(values) != len(times) {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("has %d values for %d hours", len(values), len(times))}
		}
		return values, nil
	}

	type levelSeries struct{ z, speed, dir []*float64 }
	levels := make([]levelSeries, 0, len(openMeteoLevels))
	for _, lvl := range openMeteoLevels {
		suffix := fmt.Sprintf("%dhPa", lvl)
		z, err := series("geopotential_height_" + suffix)
		if err != nil {
			return nil, nil, err
		}
		speed, err := series("windspeed_" + suffix)
		if err != nil {
			return nil, nil, err
		}
		dir, err := series("winddirection_" + suffix)
		if err != nil {
			return nil, nil, err
		}
		levels = append(levels, levelSeries{z, speed, dir})
	}

	// Boundary-layer height is not offered by every model
	pblh, err := series("boundary_layer_height")
	if err != nil {
		s.logger.Debug("No boundary-layer height in response", logger.Error(err))
		pblh = nil
	}

	lat, lon := resp.Latitude, resp.Longitude
	ds := &Dataset{
		Hours:  make([]string, 0, len(times)),
		Frames: make(map[string]*HourlyFrame, len(times)),
		Lat:    &lat,
		Lon:    &lon,
	}

	stamps := make([]time.Time, 0, len(times))
	for t, stamp := range times {
		ts, err := time.Parse("2006-01-02T15:04", stamp)
		if err != nil {
			return nil, nil, &ValidationError{Hour: stamp, Field: "time", Reason: err.Error()}
		}
		hour := ts.Format(layout)
		stamps = append(stamps, ts)

		frame := &HourlyFrame{}
		for _, l := range levels {
			if l.z[t] == nil || l.speed[t] == nil || l.dir[t] == nil {
				continue
			}
			z := *l.z[t]
			// Levels below ground come back under the surface level or out of order
			if n := len(frame.Z); n > 0 && z <= frame.Z[n-1] {
				continue
			}
			// Wind direction is where it blows from
			rad := *l.dir[t] * math.Pi / 180.0
			frame.Z = append(frame.Z, z)
			frame.U = append(frame.U, -*l.speed[t]*math.Sin(rad))
			frame.V = append(frame.V, -*l.speed[t]*math.Cos(rad))
		}
		if len(frame.Z) == 0 {
			return nil, nil, &ValidationError{Hour: hour, Field: "z", Reason: "no usable pressure level"}
		}
		if pblh != nil && pblh[t] != nil {
			// Reported above ground; the grid is above sea level
			frame.PBLH = *pblh[t] + resp.Elevation
		}

		if _, dup := ds.Frames[hour]; dup {
			return nil, nil, &ValidationError{Hour: hour, Field: "time", Reason: "duplicate hour"}
		}
		ds.Hours = append(ds.Hours, hour)
		ds.Frames[hour] = frame
	}

	raw, err := encodeDocument(ds)
	if err != nil {
		return nil, nil, err
	}
	ds.Raw = raw
	return ds, stamps, nil
}

// splitDays cuts a dataset into one dataset per UTC day, latest first,
// keeping at most days of them
func splitDays(ds *Dataset, times []time.Time, days int) ([]*Dataset, error) {
	var history []*Dataset
	var current *Dataset
	var currentDay string

	for i, hour := range ds.Hours {
		ts := times[i]
		day := ts.Format("2006-01-02")
		if current == nil || day != currentDay {
			current = &Dataset{
				Frames: make(map[string]*HourlyFrame),
				Lat:    ds.Lat,
				Lon:    ds.Lon,
			}
			currentDay = day
			history = append(history, current)
		}
		label := ts.Format(hourLayout)
		current.Hours = append(current.Hours, label)
		current.Frames[label] = ds.Frames[hour]
	}

	// Chronological in the response, latest first in the history
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	if len(history) > days {
		history = history[:days]
	}

	for _, day := range history {
		raw, err := encodeDocument(day)
		if err != nil {
			return nil, err
		}
		day.Raw = raw
	}
	return history, nil
}

// encodeDocument renders a dataset in the "forecasts" schema, keeping hour order
func encodeDocument(ds *Dataset) (json.RawMessage, error) {
	var b strings.Builder
	b.WriteString(`{`)
	if ds.HasLocation() {
		fmt.Fprintf(&b, `"lat":%s,"lon":%s,`,
			strconv.FormatFloat(*ds.Lat, 'f', -1, 64),
			strconv.FormatFloat(*ds.Lon, 'f', -1, 64))
	}
	b.WriteString(`"forecasts":{`)
	for i, hour := range ds.Hours {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(hour)
		if err != nil {
			return nil, err
		}
		frame, err := json.Marshal(ds.Frames[hour])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(frame)
	}
	b.WriteString(`}}`)
	return json.RawMessage(b.String()), nil
}
