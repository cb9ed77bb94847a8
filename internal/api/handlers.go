package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/maximepiton/raspit/internal/config"
	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/internal/physics"
	"github.com/maximepiton/raspit/internal/render"
	"github.com/maximepiton/raspit/internal/websocket"
	"github.com/maximepiton/raspit/pkg/logger"
)

// Query limits for the table geometry
const (
	maxLevels    = 200
	maxHeightCap = 20000.0
)

// How long a request waits for the first upstream fetch
const initialDataWait = 5 * time.Second

var errDayUnavailable = errors.New("no forecast for that day")

// DatasetProvider is the part of the forecast service the handlers use
type DatasetProvider interface {
	GetDataset(ctx context.Context) (*forecast.Dataset, error)
	GetHistory(ctx context.Context) ([]*forecast.Dataset, error)
	RefreshNow()
	GetCacheStats() map[string]interface{}
	LastUpdated() time.Time
	IsStale() bool
}

// Handler contains the API handlers
type Handler struct {
	forecastService DatasetProvider
	engine          *render.Engine
	config          *config.Config
	wsServer        *websocket.Server
	logger          *logger.Logger
	now             func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(forecastService DatasetProvider, engine *render.Engine, config *config.Config, wsServer *websocket.Server, logger *logger.Logger) *Handler {
	return &Handler{
		forecastService: forecastService,
		engine:          engine,
		config:          config,
		wsServer:        wsServer,
		logger:          logger.Named("api-handler"),
		now:             time.Now,
	}
}

// GetPage renders the full HTML page with one table per day
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	opts, err := h.tableOptions(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := render.PageData{
		Title:         h.config.Server.PageTitle,
		WebSocketPath: "/api/v1/ws",
		FragmentPath:  "/api/v1/history.html",
	}

	status := http.StatusOK
	days, err := h.history(r)
	switch {
	case errors.Is(err, forecast.ErrNoData):
		// The page still loads and fills in once the first update arrives
		status = http.StatusServiceUnavailable
	case err != nil:
		h.logger.Error("Failed to get forecast dataset", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	default:
		data.Tables = buildTables(days, opts)
		ds := days[0]
		data.Lat, data.Lon = ds.Lat, ds.Lon
		data.Declination = h.declination(ds)
		data.LastUpdated = h.forecastService.LastUpdated()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.engine.RenderPage(w, data); err != nil {
		h.logger.Error("Failed to render page", logger.Error(err))
	}
}

// GetTable returns the table as JSON
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, ok := h.buildTable(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, table)
}

// GetTableHTML returns the table as an HTML fragment
func (h *Handler) GetTableHTML(w http.ResponseWriter, r *http.Request) {
	table, ok := h.buildTable(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.engine.RenderTable(w, table); err != nil {
		h.logger.Error("Failed to render table", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// GetHistoryHTML returns every day's table as an HTML fragment
func (h *Handler) GetHistoryHTML(w http.ResponseWriter, r *http.Request) {
	opts, err := h.tableOptions(r.URL.Query())
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	days, err := h.history(r)
	if err != nil {
		h.writeDatasetError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.engine.RenderHistory(w, buildTables(days, opts)); err != nil {
		h.logger.Error("Failed to render history", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// GetForecast returns the upstream document as it was received. The
// last_x_day query selects a previous day.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ds, err := h.datasetForDay(r)
	if err != nil {
		h.writeDatasetError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !h.forecastService.LastUpdated().IsZero() {
		w.Header().Set("Last-Modified", h.forecastService.LastUpdated().UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(ds.Raw)
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.forecastService.GetCacheStats()

	status := "ok"
	if has, _ := stats["has_data"].(bool); !has {
		status = "no_data"
	} else if h.forecastService.IsStale() {
		status = "stale"
	}

	response := map[string]interface{}{
		"status":    status,
		"forecast":  stats,
		"templates": h.engine.GetCacheStats(),
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.config.Public())
}

// PostRefresh triggers an immediate upstream refresh
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.forecastService.RefreshNow()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "refresh_scheduled"})
}

// HandleWebSocket upgrades the connection and registers the client
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// BroadcastUpdate pushes a freshly built table to every connected page
func (h *Handler) BroadcastUpdate(ds *forecast.Dataset) {
	if h.wsServer == nil {
		return
	}
	table := forecast.BuildTable(ds, h.config.Table.Options())
	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeForecastUpdated,
		Data: table,
	})
}

type tableRequest struct {
	Levels    int     `json:"levels"`
	MaxHeight float64 `json:"max_height"`
}

// HandleMessage answers table requests sent over the WebSocket
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data json.RawMessage) error {
	if messageType != websocket.MessageTypeTableRequest {
		return fmt.Errorf("unsupported message type: %s", messageType)
	}

	var req tableRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("invalid table request: %w", err)
		}
	}

	opts := h.config.Table.Options()
	if req.Levels != 0 {
		opts.Levels = req.Levels
	}
	if req.MaxHeight != 0 {
		opts.MaxHeight = req.MaxHeight
	}
	if err := checkTableOptions(opts); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), initialDataWait)
	defer cancel()
	ds, err := h.forecastService.GetDataset(ctx)
	if err != nil {
		return err
	}

	client.SendMessage(&websocket.Message{
		Type: websocket.MessageTypeTableResponse,
		Data: forecast.BuildTable(ds, opts),
	})
	return nil
}

func (h *Handler) buildTable(w http.ResponseWriter, r *http.Request) (*forecast.Table, bool) {
	opts, err := h.tableOptions(r.URL.Query())
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}

	ds, err := h.datasetForDay(r)
	if err != nil {
		h.writeDatasetError(w, err)
		return nil, false
	}

	return forecast.BuildTable(ds, opts), true
}

func (h *Handler) dataset(r *http.Request) (*forecast.Dataset, error) {
	ctx, cancel := context.WithTimeout(r.Context(), initialDataWait)
	defer cancel()
	return h.forecastService.GetDataset(ctx)
}

func (h *Handler) history(r *http.Request) ([]*forecast.Dataset, error) {
	ctx, cancel := context.WithTimeout(r.Context(), initialDataWait)
	defer cancel()
	return h.forecastService.GetHistory(ctx)
}

// datasetForDay returns the dataset selected by the last_x_day query
func (h *Handler) datasetForDay(r *http.Request) (*forecast.Dataset, error) {
	day := dayParam(r.URL.Query())
	if day == 0 {
		return h.dataset(r)
	}

	days, err := h.history(r)
	if err != nil {
		return nil, err
	}
	if day >= len(days) {
		return nil, fmt.Errorf("%w: last_x_day=%d", errDayUnavailable, day)
	}
	return days[day], nil
}

// dayParam reads last_x_day; missing, malformed and negative values mean today
func dayParam(q map[string][]string) int {
	day, err := strconv.Atoi(first(q[forecast.DayParam]))
	if err != nil || day < 0 {
		return 0
	}
	return day
}

func buildTables(days []*forecast.Dataset, opts forecast.TableOptions) []*forecast.Table {
	tables := make([]*forecast.Table, 0, len(days))
	for _, ds := range days {
		tables = append(tables, forecast.BuildTable(ds, opts))
	}
	return tables
}

func (h *Handler) writeDatasetError(w http.ResponseWriter, err error) {
	if errors.Is(err, forecast.ErrNoData) {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if errors.Is(err, errDayUnavailable) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Error("Failed to get forecast dataset", logger.Error(err))
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// tableOptions reads levels and max_height from the query, falling back to the configured geometry
func (h *Handler) tableOptions(q map[string][]string) (forecast.TableOptions, error) {
	opts := h.config.Table.Options()

	if v := first(q["levels"]); v != "" {
		levels, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid levels parameter: %q", v)
		}
		opts.Levels = levels
	}
	if v := first(q["max_height"]); v != "" {
		height, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid max_height parameter: %q", v)
		}
		opts.MaxHeight = height
	}

	return opts, checkTableOptions(opts)
}

func checkTableOptions(opts forecast.TableOptions) error {
	if opts.Levels <= 0 || opts.Levels > maxLevels {
		return fmt.Errorf("levels must be between 1 and %d", maxLevels)
	}
	if !(opts.MaxHeight > 0 && opts.MaxHeight <= maxHeightCap) {
		return fmt.Errorf("max_height must be greater than 0 and at most %g", maxHeightCap)
	}
	return nil
}

// declination returns the magnetic declination at the sounding location, if known
func (h *Handler) declination(ds *forecast.Dataset) *float64 {
	if !ds.HasLocation() {
		return nil
	}
	d, ok := physics.CalculateMagneticVariation(*ds.Lat, *ds.Lon, 0, h.now())
	if !ok {
		h.logger.Debug("Magnetic model unavailable for current date")
		return nil
	}
	return &d
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
