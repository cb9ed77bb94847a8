package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maximepiton/raspit/internal/config"
	"github.com/maximepiton/raspit/internal/render"
	"github.com/maximepiton/raspit/internal/websocket"
	"github.com/maximepiton/raspit/pkg/logger"
)

// Router wires the handlers to their routes
type Router struct {
	handler *Handler
	static  *StaticFileHandler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(forecastService DatasetProvider, engine *render.Engine, cfg *config.Config, wsServer *websocket.Server, log *logger.Logger) *Router {
	r := &Router{
		handler: NewHandler(forecastService, engine, cfg, wsServer, log),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
	if cfg.Server.StaticFilesDir != "" {
		r.static = NewStaticFileHandler(cfg.Server.StaticFilesDir, log)
	}
	return r
}

// Handler returns the handler set, for wiring service callbacks
func (rt *Router) Handler() *Handler {
	return rt.handler
}

// Routes returns the HTTP handler for all routes
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := rt.handler

	r.Get("/", h.GetPage)
	r.Get("/forecast", h.GetForecast)

	r.Route("/api/v1", func(r chi.Router) {
		// The WebSocket is long-lived and stays outside the timeout
		if h.wsServer != nil {
			r.Get("/ws", h.HandleWebSocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/table", h.GetTable)
			r.Get("/table.html", h.GetTableHTML)
			r.Get("/history.html", h.GetHistoryHTML)
			r.Get("/health", h.GetHealth)
			r.Get("/config", h.GetConfig)
			r.Post("/refresh", h.PostRefresh)
		})
	})

	if rt.static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", rt.static))
	}

	return r
}

// requestLogger logs every request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
