package declarative

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
)

// Fetcher performs outbound requests; *client.Client implements it.
type Fetcher interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Result is the body every declarative module responds with.
type Result struct {
	Source string              `json:"source"`
	Count  int                 `json:"count"`
	Items  []map[string]string `json:"items"`
}

// Module fetches a page and extracts items on every request.
type Module struct {
	def   *Definition
	path  string
	fetch Fetcher
	ops   *scraper.Ops
}

func (m *Module) Config() module.Config { return m.def.Config() }

func (m *Module) Source() string { return m.path }

// Definition returns the parsed definition.
func (m *Module) Definition() *Definition { return m.def }

// Initialize fetches the target url, extracts items and sends them as JSON.
// Non-2xx upstream statuses are errors.
func (m *Module) Initialize(ctx *module.Context) error {
	var query url.Values
	if ctx.Request != nil {
		query = ctx.Request.URL.Query()
	}
	target := m.def.Target(query)

	resp, err := m.fetch.Do(ctx.Ctx(), client.Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: m.def.Headers,
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	if !resp.OK() {
		return fmt.Errorf("fetch %s: upstream returned %d", target, resp.Status)
	}

	doc, err := m.ops.Parse(resp.Body, resp.ContentType)
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, err)
	}
	items, err := doc.Extract(m.def.Query())
	if err != nil {
		return err
	}
	if items == nil {
		items = []map[string]string{}
	}

	ctx.Logger.Debug("Extracted items",
		zap.String("url", resp.URL),
		zap.Int("count", len(items)),
		zap.Duration("elapsed", resp.Elapsed))

	return ctx.Response.JSON(Result{Source: resp.URL, Count: len(items), Items: items})
}

// Loader reads YAML and TOML module files. It satisfies discovery.Loader.
type Loader struct {
	fetch  Fetcher
	ops    *scraper.Ops
	logger *logging.Logger
}

// NewLoader creates a loader whose modules share fetch and ops.
func NewLoader(fetch Fetcher, ops *scraper.Ops, logger *logging.Logger) *Loader {
	if ops == nil {
		ops = scraper.NewOps()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{fetch: fetch, ops: ops, logger: logger}
}

func (l *Loader) Load(_ context.Context, path string) (module.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	if l.fetch == nil {
		return nil, fmt.Errorf("%s: no fetcher configured", path)
	}
	l.logger.Debug("Parsed declarative module", zap.String("path", path), zap.String("name", def.Name))
	return &Module{def: def, path: path, fetch: l.fetch, ops: l.ops}, nil
}
