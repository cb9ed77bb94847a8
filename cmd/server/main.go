package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/maximepiton/raspit/internal/api"
	"github.com/maximepiton/raspit/internal/config"
	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/internal/render"
	"github.com/maximepiton/raspit/internal/websocket"
	"github.com/maximepiton/raspit/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	envPath := flag.String("env", ".env", "Path to a .env file with RASPIT_* overrides")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading environment: %v\n", err)
		os.Exit(1)
	}

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	configSource := cfg.Source
	if configSource == "" {
		configSource = "defaults"
	}
	log.Info("Starting forecast table server",
		logger.String("version", Version),
		logger.String("config", configSource),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	forecastService, err := forecast.NewService(cfg.Forecast, log)
	if err != nil {
		log.Error("Failed to create forecast service", logger.Error(err))
		os.Exit(1)
	}

	engine := render.NewEngine(cfg.Server.TemplatesDir, cfg.Server.TemplatesReload, log)

	// Create API router
	router := api.NewRouter(forecastService, engine, cfg, wsServer, log)
	wsServer.SetMessageHandler(router.Handler())
	forecastService.OnUpdate(router.Handler().BroadcastUpdate)

	if err := forecastService.Start(); err != nil {
		log.Error("Failed to start forecast service", logger.Error(err))
		os.Exit(1)
	}

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := append([]int{cfg.Server.Port}, cfg.Server.AdditionalPorts...)

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler, // All servers use the same router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// HTTP first, so no request reaches the forecast service once it stops
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Stopping forecast service...")
	forecastService.Stop()
	log.Info("Forecast service stopped.")

	// Stops the hub and closes WebSocket clients
	cancel()

	log.Info("Server fully stopped")
}
