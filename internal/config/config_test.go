package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maximepiton/raspit/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Table.Levels)
	assert.Equal(t, 4000.0, cfg.Table.MaxHeightM)
	assert.Equal(t, "forecasts", cfg.Forecast.Schema)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[forecast]
source_url = "http://example.test/forecast"
schema = "data"

[table]
levels = 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "http://example.test/forecast", cfg.Forecast.SourceURL)
	assert.Equal(t, "data", cfg.Forecast.Schema)
	assert.Equal(t, 30, cfg.Forecast.RefreshIntervalMinutes)
	assert.Equal(t, 10, cfg.Table.Levels)
	assert.Equal(t, 4000.0, cfg.Table.MaxHeightM)

	opts := cfg.Table.Options()
	assert.Equal(t, 10, opts.Levels)
	assert.Equal(t, 4000.0, opts.MaxHeight)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config file not found")

	_, err = Load(writeConfig(t, "[server\nport = "))
	assert.ErrorContains(t, err, "failed to decode config file")
}

func TestLoadWithFallbackDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadWithFallbackPreferred(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 7070\n")

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvSourceURL, "http://override.test/forecast")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPort, "8181")

	cfg, err := Load(writeConfig(t, "[server]\nport = 9090\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://override.test/forecast", cfg.Forecast.SourceURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8181, cfg.Server.Port)

	t.Setenv(EnvPort, "eighty")
	_, err = Load(writeConfig(t, ""))
	assert.ErrorContains(t, err, EnvPort)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(EnvLogLevel+"=warn\n"), 0o644))

	// restored by t.Setenv after the test
	t.Setenv(EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "warn", os.Getenv(EnvLogLevel))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"duplicate port", func(c *Config) { c.Server.AdditionalPorts = []int{c.Server.Port} }, "duplicate port"},
		{"bad additional port", func(c *Config) { c.Server.AdditionalPorts = []int{70000} }, "invalid additional server port"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeoutSecs = -1 }, "timeouts"},
		{"missing static dir", func(c *Config) { c.Server.StaticFilesDir = "/nonexistent/static" }, "static files directory"},
		{"missing templates dir", func(c *Config) { c.Server.TemplatesDir = "/nonexistent/tmpl" }, "templates directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
		{"no history", func(c *Config) { c.Forecast.HistoryDays = 0 }, "history_days"},
		{"unknown schema", func(c *Config) { c.Forecast.Schema = "grib" }, "invalid forecast config"},
		{"empty source", func(c *Config) { c.Forecast.SourceURL = "" }, "source_url"},
		{"zero levels", func(c *Config) { c.Table.Levels = 0 }, "table levels"},
		{"zero height", func(c *Config) { c.Table.MaxHeightM = 0 }, "max_height_m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAcceptsLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "WARN"} {
		cfg := Default()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), level)

		_, err := logger.New(cfg.LoggerConfig())
		assert.NoError(t, err, level)
	}
}

func TestPublic(t *testing.T) {
	pub := Default().Public()
	assert.Equal(t, 25, pub["levels"])
	assert.Equal(t, "forecasts", pub["schema"])
	assert.NotContains(t, pub, "port")
}
