package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/registry"
	"github.com/GriffinCanCode/ScraperAPI/internal/sandbox"
)

// RoutePrefix is the path every module is mounted under.
const RoutePrefix = "/api/"

// PanicError is a recovered panic from a module's Initialize.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("module panicked: %v", e.Value)
}

// Dispatcher binds one GET route per registered module and turns module
// failures into the fixed error response.
type Dispatcher struct {
	registry *registry.Registry
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	mirror   any
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records invocations in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer opens a span per module invocation.
func WithTracer(t *tracing.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithMirror sets the shared registry every module is copied into on Bind.
// A target without Set(string, module.Descriptor) is reported and ignored.
func WithMirror(target any) Option {
	return func(d *Dispatcher) { d.mirror = target }
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *registry.Registry, logger *logging.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	d := &Dispatcher{registry: reg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind mirrors the registry and mounts GET /api/<name> for every entry in
// registry order. It returns the number of routes bound.
func (d *Dispatcher) Bind(router gin.IRoutes) int {
	d.registry.MirrorTo(d.mirror, d.logger)

	n := 0
	d.registry.Each(func(name string, desc module.Descriptor) {
		router.GET(RoutePrefix+name, d.handle(name, desc))
		d.logger.Main("Successfully loaded %s", name)
		n++
	})

	noun := "APIs"
	if n == 1 {
		noun = "API"
	}
	d.logger.Main("Successfully loaded %d %s", n, noun)

	if d.metrics != nil {
		d.metrics.SetModulesLoaded(n)
	}
	return n
}

func (d *Dispatcher) handle(name string, desc module.Descriptor) gin.HandlerFunc {
	modLogger := d.logger.Module(name)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := modLogger.With(tracing.Fields(ctx)...)

		var span *tracing.Span
		if d.tracer != nil {
			span, ctx = d.tracer.StartSpan(ctx, "module "+name)
			span.SetTag("module", name)
			defer func() {
				span.Finish()
				d.tracer.Submit(span)
			}()
		}

		mctx := module.NewContext(c.Request.WithContext(ctx), logger)
		timer := monitoring.NewTimer(d.metrics, name)

		err := invoke(desc, mctx)
		if err == nil {
			err = mctx.Response.Err()
		}
		if err != nil {
			kind := classify(err)
			status := monitoring.StatusError
			if kind == "panic" {
				status = monitoring.StatusPanic
			}
			elapsed := timer.Stop(status)
			if d.metrics != nil {
				d.metrics.RecordModuleFailure(name, kind)
			}
			if span != nil {
				span.SetError(err)
			}

			fields := []zap.Field{zap.Error(err), zap.String("error_type", kind), zap.Duration("elapsed", elapsed)}
			var pe *PanicError
			if errors.As(err, &pe) {
				fields = append(fields, zap.ByteString("stack", pe.Stack))
			}
			logger.Error("API request failed", fields...)

			_ = c.Error(err)
			c.Data(http.StatusInternalServerError, "application/json", module.ErrorBody())
			return
		}
		timer.Stop(monitoring.StatusSuccess)

		if !mctx.Response.Written() {
			logger.Warn("API module sent no response")
		}
		if span != nil {
			span.SetStatus(mctx.Response.StatusCode())
		}
		if err := mctx.Response.Flush(c.Writer); err != nil {
			logger.Warn("Failed to write response", zap.Error(err))
		}
	}
}

// invoke runs Initialize, turning a panic into a *PanicError.
func invoke(desc module.Descriptor, mctx *module.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return desc.Initialize(mctx)
}

// classify names the failure kind used in logs and metrics.
func classify(err error) string {
	var pe *PanicError
	var se *sandbox.ScriptError
	switch {
	case errors.As(err, &pe):
		return "panic"
	case errors.Is(err, sandbox.ErrTimeout):
		return "timeout"
	case errors.Is(err, sandbox.ErrUnsettled):
		return "unsettled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &se):
		return "script"
	default:
		return "error"
	}
}
