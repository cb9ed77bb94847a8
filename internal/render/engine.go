package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/maximepiton/raspit/internal/forecast"
	"github.com/maximepiton/raspit/pkg/logger"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

const templatePattern = "*.tmpl"

// Template names defined by the template set
const (
	TablePartial   = "table"
	HistoryPartial = "history" // one table per day, latest first
	PageTemplate   = "page"
)

// PageData is the input of the full page template
type PageData struct {
	Title         string
	Tables        []*forecast.Table // latest day first
	Lat           *float64
	Lon           *float64
	Declination   *float64 // degrees, +East
	LastUpdated   time.Time
	WebSocketPath string // empty disables live updates
	FragmentPath  string // where the page re-fetches the tables on update
}

// Engine loads, caches and executes the HTML templates
type Engine struct {
	dir    string // optional override directory; builtin templates when empty
	reload bool

	set        *template.Template
	executions int
	cacheMutex sync.RWMutex
	logger     *logger.Logger
}

// NewEngine creates a new template engine. When dir is set, templates are
// read from it instead of the builtin set; reload re-reads them on every call.
func NewEngine(dir string, reload bool, logger *logger.Logger) *Engine {
	return &Engine{
		dir:    dir,
		reload: reload,
		logger: logger.Named("render-engine"),
	}
}

// RenderTable writes the table fragment
func (e *Engine) RenderTable(w io.Writer, table *forecast.Table) error {
	return e.execute(w, TablePartial, table)
}

// RenderHistory writes one table fragment per day
func (e *Engine) RenderHistory(w io.Writer, tables []*forecast.Table) error {
	return e.execute(w, HistoryPartial, tables)
}

// RenderPage writes a complete HTML page
func (e *Engine) RenderPage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "Forecast"
	}
	return e.execute(w, PageTemplate, data)
}

// execute renders into a buffer first so a failing template never leaves a
// half-written response
func (e *Engine) execute(w io.Writer, name string, data interface{}) error {
	set, err := e.getTemplateSet()
	if err != nil {
		return fmt.Errorf("failed to get templates: %w", err)
	}

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	e.cacheMutex.Lock()
	e.executions++
	e.cacheMutex.Unlock()

	e.logger.Debug("Template rendered successfully",
		logger.String("template", name),
		logger.Int("rendered_length", buf.Len()))

	_, err = buf.WriteTo(w)
	return err
}

// getTemplateSet retrieves the template set from cache or loads it
func (e *Engine) getTemplateSet() (*template.Template, error) {
	if e.reload {
		return e.loadTemplateSet()
	}

	e.cacheMutex.RLock()
	if e.set != nil {
		set := e.set
		e.cacheMutex.RUnlock()
		return set, nil
	}
	e.cacheMutex.RUnlock()

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	// Double-check in case another goroutine loaded it while we were waiting
	if e.set != nil {
		return e.set, nil
	}

	set, err := e.loadTemplateSet()
	if err != nil {
		return nil, err
	}

	e.set = set
	e.logger.Debug("Templates loaded and cached",
		logger.String("source", e.source()))

	return set, nil
}

func (e *Engine) loadTemplateSet() (*template.Template, error) {
	var fsys fs.FS
	if e.dir != "" {
		fsys = os.DirFS(e.dir)
	} else {
		sub, err := fs.Sub(builtinTemplates, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	set, err := template.New("raspit").Funcs(templateFuncs()).ParseFS(fsys, templatePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates from %s: %w", e.source(), err)
	}

	for _, name := range []string{TablePartial, PageTemplate, HistoryPartial} {
		if set.Lookup(name) == nil {
			return nil, fmt.Errorf("template %q not defined in %s", name, e.source())
		}
	}

	return set, nil
}

func (e *Engine) source() string {
	if e.dir != "" {
		return e.dir
	}
	return "builtin"
}

// ClearCache drops the cached template set
func (e *Engine) ClearCache() {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	e.set = nil
	e.logger.Info("Template cache cleared")
}

// GetCacheStats returns statistics about the template cache
func (e *Engine) GetCacheStats() map[string]any {
	e.cacheMutex.RLock()
	defer e.cacheMutex.RUnlock()

	return map[string]any{
		"source":     e.source(),
		"cached":     e.set != nil,
		"reload":     e.reload,
		"executions": e.executions,
	}
}
