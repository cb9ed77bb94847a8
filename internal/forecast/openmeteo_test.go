package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maximepiton/raspit/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openMeteoBody builds a two-hour response. The 1000 hPa level is below
// ground (null), every other level blows from the south at 5 m/s.
func openMeteoBody(withPBLH bool) string {
	return openMeteoHours([]string{"2024-05-01T09:00", "2024-05-01T12:00"}, withPBLH)
}

func openMeteoHours(times []string, withPBLH bool) string {
	series := func(value func(i int) string) string {
		values := make([]string, len(times))
		for i := range times {
			values[i] = value(i)
		}
		return "[" + strings.Join(values, ", ") + "]"
	}

	hourly := []string{`"time": ["` + strings.Join(times, `", "`) + `"]`}
	for i, lvl := range openMeteoLevels {
		z := series(func(int) string { return "null" })
		if lvl != 1000 {
			h := 300 + 400*i
			z = series(func(t int) string { return fmt.Sprint(h + 10*t) })
		}
		hourly = append(hourly,
			fmt.Sprintf(`"geopotential_height_%dhPa": %s`, lvl, z),
			fmt.Sprintf(`"windspeed_%dhPa": %s`, lvl, series(func(int) string { return "5" })),
			fmt.Sprintf(`"winddirection_%dhPa": %s`, lvl, series(func(int) string { return "180" })))
	}
	if withPBLH {
		hourly = append(hourly, `"boundary_layer_height": `+series(func(t int) string { return fmt.Sprint(500 + 700*t) }))
	}
	return fmt.Sprintf(`{"latitude": 44.46, "longitude": 1.37, "elevation": 200, "hourly": {%s}}`, strings.Join(hourly, ","))
}

func newTestOpenMeteo(t *testing.T, baseURL string) *OpenMeteoSource {
	t.Helper()
	cfg := testSourceConfig("")
	cfg.Kind = SourceKindOpenMeteo
	cfg.OpenMeteo.BaseURL = baseURL

	src, err := NewOpenMeteoSource(cfg, logger.NewNop())
	require.NoError(t, err)
	src.client.backoffBase = time.Millisecond
	return src
}

func TestOpenMeteoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "44.4636", q.Get("latitude"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Contains(t, q.Get("hourly"), "geopotential_height_850hPa")
		w.Write([]byte(openMeteoBody(true)))
	}))
	defer srv.Close()

	ds, err := newTestOpenMeteo(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00", "12:00"}, ds.Hours)
	require.True(t, ds.HasLocation())
	assert.Equal(t, 44.46, *ds.Lat)

	frame := ds.Frames["09:00"]
	require.NotNil(t, frame)
	// Below-ground level dropped
	assert.Len(t, frame.Z, len(openMeteoLevels)-1)
	assert.Equal(t, 700.0, frame.Z[0])
	assert.Equal(t, 700.0, frame.PBLH)
	assert.Equal(t, 1400.0, ds.Frames["12:00"].PBLH)

	// From the south: blowing north, so u ~ 0 and v = +5
	assert.InDelta(t, 0, frame.U[0], 1e-9)
	assert.InDelta(t, 5, frame.V[0], 1e-9)
	assert.InDelta(t, 18, WindSpeed(frame.U[0], frame.V[0]), 1e-9)

	// The raw document is re-encoded in the forecasts schema
	again, err := Decode(ds.Raw, SchemaForecasts)
	require.NoError(t, err)
	assert.Equal(t, ds.Hours, again.Hours)
	assert.Equal(t, frame.Z, again.Frames["09:00"].Z)
}

func TestOpenMeteoWithoutBoundaryLayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(openMeteoBody(false)))
	}))
	defer srv.Close()

	ds, err := newTestOpenMeteo(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ds.Frames["12:00"].PBLH)
}

func TestOpenMeteoRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"no hours", `{"hourly": {"time": []}}`},
		{"missing level", `{"hourly": {"time": ["2024-05-01T09:00"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestOpenMeteo(t, srv.URL).Fetch(context.Background())
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestOpenMeteoFetchHistory(t *testing.T) {
	pastDays := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pastDays <- r.URL.Query().Get("past_days")
		w.Write([]byte(openMeteoHours([]string{
			"2024-04-29T12:00",
			"2024-04-30T09:00", "2024-04-30T12:00",
			"2024-05-01T09:00", "2024-05-01T12:00",
		}, true)))
	}))
	defer srv.Close()

	days, err := newTestOpenMeteo(t, srv.URL).FetchHistory(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "1", <-pastDays)

	// Latest day first, the oldest day is dropped
	require.Len(t, days, 2)
	assert.Equal(t, []string{"09:00", "12:00"}, days[0].Hours)
	assert.Equal(t, []string{"09:00", "12:00"}, days[1].Hours)
	// PBLH grows by 700 m per hour index
	assert.Equal(t, 500+700*3+200.0, days[0].Frames["09:00"].PBLH)
	assert.Equal(t, 500+700*1+200.0, days[1].Frames["09:00"].PBLH)
	require.True(t, days[1].HasLocation())

	again, err := Decode(days[1].Raw, SchemaForecasts)
	require.NoError(t, err)
	assert.Equal(t, days[1].Hours, again.Hours)
}

func TestNewServiceSourceKinds(t *testing.T) {
	cfg := DefaultSourceConfig()
	svc, err := NewService(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Client{}, svc.source)

	cfg.Kind = SourceKindOpenMeteo
	svc, err = NewService(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenMeteoSource{}, svc.source)

	cfg.Kind = "grib"
	_, err = NewService(cfg, logger.NewNop())
	assert.Error(t, err)
	assert.Error(t, ValidateConfig(cfg))
}
