// Command render turns a forecast document into a standalone HTML page.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/internal/physics"
	"github.com/maximepiton/raspit/internal/render"
	"github.com/maximepiton/raspit/pkg/logger"
)

func main() {
	in := flag.String("in", "-", "Forecast JSON: a file path, an http(s) URL, or - for stdin")
	out := flag.String("out", "", "Output file (default stdout)")
	schemaName := flag.String("schema", forecast.SchemaForecasts.Name, "Document schema: forecasts or data")
	levels := flag.Int("levels", forecast.DefaultLevels, "Number of altitude bands")
	maxHeight := flag.Float64("max-height", forecast.DefaultMaxHeight, "Top of the highest band (m)")
	title := flag.String("title", "Wind forecast", "Page title")
	templatesDir := flag.String("templates", "", "Directory overriding the builtin templates")
	days := flag.Int("days", 1, "Days of forecasts to draw, one table each (URL input only)")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*in, *out, *schemaName, *title, *templatesDir, *days, forecast.TableOptions{Levels: *levels, MaxHeight: *maxHeight}, log); err != nil {
		log.Error("Render failed", logger.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out, schemaName, title, templatesDir string, days int, opts forecast.TableOptions, log *logger.Logger) error {
	schema, err := forecast.SchemaByName(schemaName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	history, err := load(ctx, in, schema, days, log)
	if err != nil {
		return err
	}
	ds := history[0]

	tables := make([]*forecast.Table, 0, len(history))
	for _, day := range history {
		tables = append(tables, forecast.BuildTable(day, opts))
	}

	data := render.PageData{
		Title:       title,
		Tables:      tables,
		Lat:         ds.Lat,
		Lon:         ds.Lon,
		LastUpdated: time.Now(),
	}
	if ds.HasLocation() {
		if d, ok := physics.CalculateMagneticVariation(*ds.Lat, *ds.Lon, 0, time.Now()); ok {
			data.Declination = &d
		}
	}

	engine := render.NewEngine(templatesDir, false, log)
	if out == "" {
		err = engine.RenderPage(os.Stdout, data)
	} else {
		err = writePage(out, engine, data)
	}
	if err != nil {
		return err
	}

	log.Info("Page rendered",
		logger.Int("days", len(tables)),
		logger.Int("hours", len(ds.Hours)),
		logger.Int("levels", opts.Levels),
		logger.String("out", out))
	return nil
}

// writePage renders into a file. The close error is returned since it may
// carry a failed write.
func writePage(path string, engine *render.Engine, data render.PageData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := engine.RenderPage(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// load reads the forecast, latest day first. Only URLs can have previous days.
func load(ctx context.Context, in string, schema forecast.Schema, days int, log *logger.Logger) ([]*forecast.Dataset, error) {
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		cfg := forecast.DefaultSourceConfig()
		cfg.SourceURL = in
		cfg.Schema = schema.Name
		cfg.RequestsPerMinute = 0
		cfg.HistoryDays = days

		client, err := forecast.NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return client.FetchHistory(ctx, days)
	}

	var (
		data []byte
		err  error
	)
	if in == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(in)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast: %w", err)
	}

	ds, err := forecast.Decode(data, schema)
	if err != nil {
		return nil, err
	}
	return []*forecast.Dataset{ds}, nil
}
