package module

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// Config is the static metadata a module declares about itself.
type Config struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Description string   `json:"description,omitempty" yaml:"description" toml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags" toml:"tags"`
}

// Descriptor is a pluggable API module. Initialize is invoked once per
// request to GET /api/<Config().Name> and must write its result through
// ctx.Response.
type Descriptor interface {
	Config() Config
	Initialize(ctx *Context) error
}

// Sourcer is implemented by descriptors loaded from a file.
type Sourcer interface {
	Source() string
}

// Closer is implemented by descriptors holding resources such as runtime pools.
type Closer interface {
	Close() error
}

// Context is the per-request value handed to Initialize. It is built fresh
// for every request and dropped afterwards.
type Context struct {
	Request  *http.Request
	Response *Response
	Logger   *logging.Logger
}

// NewContext builds a request context with a fresh, armed Response.
func NewContext(r *http.Request, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Context{
		Request:  r,
		Response: NewResponse(),
		Logger:   logger,
	}
}

// Ctx returns the request's context.Context.
func (c *Context) Ctx() context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// InitializeFunc is the function form of Descriptor.Initialize.
type InitializeFunc func(ctx *Context) error

// Func is a Descriptor backed by a plain function.
type Func struct {
	cfg    Config
	init   InitializeFunc
	source string
}

// New returns a Descriptor for compiled-in modules.
func New(cfg Config, fn InitializeFunc) *Func {
	return &Func{cfg: cfg, init: fn}
}

// WithSource records the file the descriptor came from.
func (f *Func) WithSource(path string) *Func {
	f.source = path
	return f
}

func (f *Func) Config() Config { return f.cfg }

func (f *Func) Source() string { return f.source }

func (f *Func) Initialize(ctx *Context) error {
	if f.init == nil {
		return ErrMissingInitialize
	}
	return f.init(ctx)
}

// Validate reports whether d has the shape of a module: a non-nil value,
// a usable route name and an initialize capability.
func Validate(d Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if f, ok := d.(*Func); ok && (f == nil || f.init == nil) {
		return ErrMissingInitialize
	}
	name := d.Config().Name
	if name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(name) || strings.Trim(name, ".") == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
