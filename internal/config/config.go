package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/pkg/logger"
)

// Environment variables that override the file
const (
	EnvSourceURL = "RASPIT_SOURCE_URL"
	EnvLogLevel  = "RASPIT_LOG_LEVEL"
	EnvPort      = "RASPIT_PORT"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig          `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig         `toml:"logging"`  // Application logging settings
	Forecast forecast.SourceConfig `toml:"forecast"` // Upstream forecast source settings
	Table    TableConfig           `toml:"table"`    // Default table geometry

	// Path the configuration was read from; empty when defaults are used
	Source string `toml:"-"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve /static/ from; disabled when empty
	TemplatesDir       string   `toml:"templates_dir"`         // Overrides the builtin page templates when set
	TemplatesReload    bool     `toml:"templates_reload"`      // Re-read templates on every render (development)
	PageTitle          string   `toml:"page_title"`            // Title of the HTML page
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level (debug, info, warn, error)
	Format string `toml:"format"` // Log format (console, json)
}

func (l LoggingConfig) loggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Format: l.Format}
}

// LoggerConfig returns the settings for logger.New
func (c *Config) LoggerConfig() logger.Config {
	return c.Logging.loggerConfig()
}

// TableConfig contains the default altitude bands of the table
type TableConfig struct {
	Levels     int     `toml:"levels"`       // Number of altitude bands
	MaxHeightM float64 `toml:"max_height_m"` // Top of the highest band (m)
}

// Options returns the table options for this configuration
func (t TableConfig) Options() forecast.TableOptions {
	return forecast.TableOptions{Levels: t.Levels, MaxHeight: t.MaxHeightM}
}

// Default returns a configuration that runs without any file
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "127.0.0.1",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
			IdleTimeoutSecs:    60,
			PageTitle:          "Wind forecast",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Forecast: forecast.DefaultSourceConfig(),
		Table: TableConfig{
			Levels:     forecast.DefaultLevels,
			MaxHeightM: forecast.DefaultMaxHeight,
		},
	}
}

// Load loads the configuration from the specified file path. Keys absent
// from the file keep their default values.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	config.Source = path

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference.
// When no file exists anywhere, defaults are used.
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	config := Default()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadDotEnv reads a .env file into the process environment. A missing file
// is not an error; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv applies the RASPIT_* overrides
func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvSourceURL)); v != "" {
		c.Forecast.SourceURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}

	// Static files are optional, but a configured directory must exist
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}
	if c.Server.TemplatesDir != "" {
		if _, err := os.Stat(c.Server.TemplatesDir); os.IsNotExist(err) {
			return fmt.Errorf("templates directory does not exist: %s", c.Server.TemplatesDir)
		}
	}

	// Same rules as the logger built from this section
	if err := c.Logging.loggerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := forecast.ValidateConfig(c.Forecast); err != nil {
		return fmt.Errorf("invalid forecast config: %w", err)
	}

	if c.Table.Levels <= 0 {
		return fmt.Errorf("table levels must be greater than 0: %d", c.Table.Levels)
	}
	if c.Table.MaxHeightM <= 0 {
		return fmt.Errorf("table max_height_m must be greater than 0: %g", c.Table.MaxHeightM)
	}

	return nil
}

// Public returns the values safe to expose over the API
func (c *Config) Public() map[string]any {
	return map[string]any{
		"source_kind":              c.Forecast.Kind,
		"source_url":               c.Forecast.SourceURL,
		"schema":                   c.Forecast.Schema,
		"refresh_interval_minutes": c.Forecast.RefreshIntervalMinutes,
		"cache_expiry_minutes":     c.Forecast.CacheExpiryMinutes,
		"history_days":             c.Forecast.HistoryDays,
		"levels":                   c.Table.Levels,
		"max_height_m":             c.Table.MaxHeightM,
		"page_title":               c.Server.PageTitle,
	}
}
