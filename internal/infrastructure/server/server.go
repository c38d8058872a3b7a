package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ScraperAPI/internal/api/http"
	"github.com/GriffinCanCode/ScraperAPI/internal/api/middleware"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/config"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/declarative"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/discovery"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/registry"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
	"github.com/GriffinCanCode/ScraperAPI/internal/sandbox"
	"github.com/GriffinCanCode/ScraperAPI/internal/service"
)

// Modules is the result of discovery plus the services modules share.
type Modules struct {
	Registry   *registry.Registry
	Candidates []discovery.Candidate
	Fetch      *client.Client
}

// LoadModules discovers cfg.Modules.Dir with the JavaScript and declarative
// loaders. metrics may be nil.
func LoadModules(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Modules, error) {
	fetch := client.New(client.Config{
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		RPS:       cfg.Fetch.RPS,
		UserAgent: cfg.Fetch.UserAgent,
	})
	ops := scraper.NewOps()

	jsLoader := sandbox.NewLoader(sandbox.Config{
		PoolSize:         cfg.Sandbox.PoolSize,
		Timeout:          cfg.Sandbox.Timeout,
		MaxCallStackSize: cfg.Sandbox.MaxCallStackSize,
		EnableConsole:    cfg.Sandbox.EnableConsole,
	}, &sandbox.Host{Scraper: ops, Fetch: fetch}, logger)
	declLoader := declarative.NewLoader(fetch, ops, logger)

	opts := []discovery.Option{
		discovery.WithPattern(cfg.Modules.Pattern),
		discovery.WithPolicy(discovery.Policy(cfg.Modules.LoadPolicy)),
		discovery.WithLogger(logger),
		discovery.WithLoader(".js", jsLoader),
		discovery.WithLoader(".yaml", declLoader),
		discovery.WithLoader(".yml", declLoader),
		discovery.WithLoader(".toml", declLoader),
	}
	if metrics != nil {
		opts = append(opts,
			discovery.OnSkip(func(string) { metrics.DiscoverySkipped.Inc() }),
			discovery.OnLoadError(func(string, error) { metrics.DiscoveryErrors.Inc() }),
		)
	}

	start := time.Now()
	cands, err := discovery.New(cfg.Modules.Dir, opts...).Discover(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("Module discovery finished",
		zap.String("dir", cfg.Modules.Dir),
		zap.Int("modules", len(cands)),
		zap.Duration("elapsed", time.Since(start)))

	return &Modules{
		Registry:   registry.Build(discovery.Descriptors(cands)),
		Candidates: cands,
		Fetch:      fetch,
	}, nil
}

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	handler  http.Handler
	modules  *Modules
	catalog  *service.Catalog
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	http     *http.Server
	routes   int
	closedCh chan struct{}
}

// NewServer loads modules and builds the router. Discovery completes before
// any route exists.
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger.Info("Initializing ScraperAPI server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("modules_dir", cfg.Modules.Dir),
		zap.String("load_policy", cfg.Modules.LoadPolicy),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("scraperapi", logger.Logger)

	modules, err := LoadModules(ctx, cfg, logger, metrics)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	catalog := service.NewCatalog()
	apihttp.NewHandlers(modules.Registry, catalog, metrics, modules.Fetch).Register(router)

	routes := apihttp.NewDispatcher(modules.Registry, logger,
		apihttp.WithMetrics(metrics),
		apihttp.WithTracer(tracer),
		apihttp.WithMirror(catalog),
	).Bind(router)

	handler, err := middleware.Compress(middleware.CompressionConfig{
		Enabled: cfg.Compression.Enabled,
		MinSize: cfg.Compression.MinSize,
	}, router)
	if err != nil {
		_ = modules.Registry.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to configure compression: %w", err)
	}

	return &Server{
		config:   cfg,
		logger:   logger,
		router:   router,
		handler:  handler,
		modules:  modules,
		catalog:  catalog,
		metrics:  metrics,
		tracer:   tracer,
		routes:   routes,
		closedCh: make(chan struct{}),
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes returns the number of module routes bound.
func (s *Server) Routes() int {
	return s.routes
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully within Server.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Graceful shutdown failed", zap.Error(err))
		_ = s.http.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases module runtimes and flushes spans and logs.
func (s *Server) Close() error {
	select {
	case <-s.closedCh:
		return nil
	default:
		close(s.closedCh)
	}

	err := s.modules.Registry.Close()
	if err != nil {
		s.logger.Error("Failed to close modules", zap.Error(err))
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
