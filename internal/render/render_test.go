package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *forecast.Table {
	ds := &forecast.Dataset{
		Hours: []string{"09", "12"},
		Frames: map[string]*forecast.HourlyFrame{
			"09": {Z: []float64{100, 300, 500}, PBLH: 250, U: []float64{1, 2, 3}, V: []float64{0, 0, 0}},
			"12": {Z: []float64{0, 1000}, PBLH: 0, U: []float64{3, 3}, V: []float64{4, 4}},
		},
	}
	return forecast.BuildTable(ds, forecast.TableOptions{Levels: 5, MaxHeight: 1000, ID: "abc"})
}

func TestCellID(t *testing.T) {
	assert.Equal(t, "l3h1_x7k2p9q", CellID(3, 1, "x7k2p9q"))
}

func TestArrowStyle(t *testing.T) {
	style := ArrowStyle(forecast.Cell{WindAngle: -53.13, ArrowSize: 20.5, ArrowColor: "#00ff00"})
	assert.Equal(t, "transform: rotate(-53.13deg); font-size: 20.50px; color: #00ff00", string(style))
}

func TestRenderTable(t *testing.T) {
	engine := NewEngine("", false, logger.NewNop())

	var buf bytes.Buffer
	require.NoError(t, engine.RenderTable(&buf, testTable()))
	out := buf.String()

	// 100 m, hour 09: inside the boundary layer
	assert.Contains(t, out, `id="l0h0_abc" bgcolor="yellow"`)
	// 900 m, hour 09: above the grid
	assert.Contains(t, out, `<td id="l4h0_abc" bgcolor="grey"></td>`)
	// hour 12 is in range everywhere at 18 km/h
	assert.Contains(t, out, `<td id="l4h1_abc"><div class="wind_container">`)
	assert.Contains(t, out, "color: #00ff00")
	assert.Contains(t, out, ">18</div>")
	assert.Contains(t, out, ArrowGlyph)

	assert.Contains(t, out, `<th scope="col">09</th><th scope="col">12</th>`)
	assert.Contains(t, out, `>900</th>`)

	// Highest band is rendered first
	assert.Less(t, strings.Index(out, "l4h0_abc"), strings.Index(out, "l0h0_abc"))
	assert.Equal(t, 5, strings.Count(out, `scope="row"`))
}

func TestRenderPage(t *testing.T) {
	engine := NewEngine("", false, logger.NewNop())
	lat, lon, decl := 44.4636, 1.3722, 2.3

	var buf bytes.Buffer
	err := engine.RenderPage(&buf, PageData{
		Title:         "Wind <table>",
		Tables:        []*forecast.Table{testTable()},
		Lat:           &lat,
		Lon:           &lon,
		Declination:   &decl,
		LastUpdated:   time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		WebSocketPath: "/api/v1/ws",
		FragmentPath:  "/api/v1/history.html",
	})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "<title>Wind &lt;table&gt;</title>")
	assert.Contains(t, out, "44.4636, 1.3722")
	assert.Contains(t, out, "2.3°")
	assert.Contains(t, out, "2024-05-01 12:30 UTC")
	assert.Contains(t, out, `id="l0h0_abc"`)
	assert.Contains(t, out, "new WebSocket")
}

func TestRenderHistory(t *testing.T) {
	engine := NewEngine("", false, logger.NewNop())

	older := testTable()
	older.ID = "def"
	older.Hours = []string{"06", "15"}

	var buf bytes.Buffer
	require.NoError(t, engine.RenderHistory(&buf, []*forecast.Table{testTable(), older}))
	out := buf.String()

	assert.Equal(t, 2, strings.Count(out, `class="history"`))
	assert.Less(t, strings.Index(out, `id="history_abc"`), strings.Index(out, `id="history_def"`))
	assert.Contains(t, out, `<th scope="col">06</th>`)
	assert.NotContains(t, out, "No forecast available yet.")

	buf.Reset()
	require.NoError(t, engine.RenderHistory(&buf, nil))
	assert.Contains(t, buf.String(), "No forecast available yet.")
}

func TestRenderPageWithoutData(t *testing.T) {
	engine := NewEngine("", false, logger.NewNop())

	var buf bytes.Buffer
	require.NoError(t, engine.RenderPage(&buf, PageData{}))
	out := buf.String()

	assert.Contains(t, out, "<title>Forecast</title>")
	assert.Contains(t, out, "No forecast available yet.")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "declination")
}

func TestEngineOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.tmpl"),
		[]byte(`{{define "table"}}rows={{len .Rows}}{{end}}{{define "history"}}{{len .}}{{end}}{{define "page"}}{{.Title}}{{end}}`), 0o644))

	engine := NewEngine(dir, false, logger.NewNop())

	var buf bytes.Buffer
	require.NoError(t, engine.RenderTable(&buf, testTable()))
	assert.Equal(t, "rows=5", buf.String())

	stats := engine.GetCacheStats()
	assert.Equal(t, dir, stats["source"])
	assert.Equal(t, true, stats["cached"])
	assert.Equal(t, 1, stats["executions"])

	engine.ClearCache()
	assert.Equal(t, false, engine.GetCacheStats()["cached"])
}

func TestEngineMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.tmpl"),
		[]byte(`{{define "table"}}x{{end}}`), 0o644))

	engine := NewEngine(dir, true, logger.NewNop())
	err := engine.RenderTable(&bytes.Buffer{}, testTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"page"`)
}
