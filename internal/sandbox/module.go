package sandbox

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

// Module is a JavaScript file exporting {config, initialize}. Each pooled
// runtime evaluates the file once, so top-level state is per runtime.
type Module struct {
	cfg  module.Config
	path string
	pool *Pool
}

func (m *Module) Config() module.Config { return m.cfg }

func (m *Module) Source() string { return m.path }

// Initialize runs the script's initialize on a pooled runtime.
func (m *Module) Initialize(ctx *module.Context) error {
	rt, err := m.pool.Acquire(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("acquire runtime for %s: %w", m.cfg.Name, err)
	}
	defer m.pool.Release(rt)
	return rt.Invoke(ctx)
}

// Stats reports the module's runtime pool.
func (m *Module) Stats() map[string]interface{} {
	return m.pool.Stats()
}

func (m *Module) Close() error {
	return m.pool.Close()
}

// Loader loads JavaScript modules. It satisfies discovery.Loader.
type Loader struct {
	config Config
	host   *Host
	logger *logging.Logger
}

// NewLoader creates a loader sharing host services across modules.
func NewLoader(config Config, host *Host, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{config: config, host: host, logger: logger}
}

// Load compiles and evaluates path. Syntax errors and exceptions thrown at
// top level are load errors; exports without config and initialize yield
// module.ErrNoDescriptor.
func (l *Loader) Load(ctx context.Context, path string) (module.Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	program, err := compile(path, src)
	if err != nil {
		return nil, &ScriptError{Path: path, Phase: PhaseLoad, Message: err.Error(), Cause: err}
	}

	log := l.logger.With(zap.String("path", path))
	first, err := newRuntime(ctx, program, path, l.config, l.host, log)
	if err != nil {
		return nil, err
	}
	cfg, ok := first.Describe()
	if !ok {
		first.Close()
		return nil, module.ErrNoDescriptor
	}

	modLog := l.logger.Module(cfg.Name)
	factory := func(ctx context.Context) (*Runtime, error) {
		rt, err := newRuntime(ctx, program, path, l.config, l.host, modLog)
		if err != nil {
			return nil, err
		}
		if _, ok := rt.Describe(); !ok {
			rt.Close()
			return nil, &ScriptError{Path: path, Phase: PhaseLoad, Message: "exports changed shape between evaluations"}
		}
		return rt, nil
	}

	pool := NewPool(l.config.PoolSize, factory)
	pool.seed(first)
	return &Module{cfg: cfg, path: path, pool: pool}, nil
}
