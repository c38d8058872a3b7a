package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

// DefaultPattern matches every file kind with a built-in loader.
const DefaultPattern = "*.{js,yaml,yml,toml}"

// Policy decides what happens when a module file fails to load.
type Policy string

const (
	// PolicyFail aborts discovery on the first load error.
	PolicyFail Policy = "fail"
	// PolicySkip logs the error and continues with the remaining files.
	PolicySkip Policy = "skip"
)

// Loader turns one file into a descriptor. It returns module.ErrNoDescriptor
// when the file is well formed but exports no module.
type Loader interface {
	Load(ctx context.Context, path string) (module.Descriptor, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (module.Descriptor, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (module.Descriptor, error) {
	return f(ctx, path)
}

// Candidate is a validated descriptor and the file it came from.
type Candidate struct {
	Path       string
	Descriptor module.Descriptor
}

// LoadError reports a module file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Discoverer enumerates a directory and loads every recognised module file.
type Discoverer struct {
	dir     string
	pattern string
	policy  Policy
	loaders map[string]Loader
	logger  *logging.Logger

	onSkip  func(path string)
	onError func(path string, err error)
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithPattern sets the doublestar pattern matched against file names
// relative to the directory.
func WithPattern(pattern string) Option {
	return func(d *Discoverer) {
		if pattern != "" {
			d.pattern = pattern
		}
	}
}

// WithPolicy sets the load error policy.
func WithPolicy(p Policy) Option {
	return func(d *Discoverer) { d.policy = p }
}

// WithLoader registers a loader for a file extension such as ".js".
func WithLoader(ext string, l Loader) Option {
	return func(d *Discoverer) { d.loaders[strings.ToLower(ext)] = l }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Discoverer) { d.logger = l }
}

// OnSkip registers a callback for files that export no module or fail
// validation.
func OnSkip(fn func(path string)) Option {
	return func(d *Discoverer) { d.onSkip = fn }
}

// OnLoadError registers a callback for every load error, whatever the policy.
func OnLoadError(fn func(path string, err error)) Option {
	return func(d *Discoverer) { d.onError = fn }
}

// New creates a Discoverer for dir.
func New(dir string, opts ...Option) *Discoverer {
	d := &Discoverer{
		dir:     dir,
		pattern: DefaultPattern,
		policy:  PolicyFail,
		loaders: make(map[string]Loader),
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover loads every matching file in lexical order. Files without a
// loader, files that export no module and descriptors failing
// module.Validate are skipped silently. Load errors follow the policy.
func (d *Discoverer) Discover(ctx context.Context) ([]Candidate, error) {
	files, err := d.enumerate()
	if err != nil {
		if d.policy == PolicySkip {
			d.logger.Warn("Module directory unavailable", zap.String("dir", d.dir), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	var out []Candidate
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			closeAll(out)
			return nil, err
		}

		loader, ok := d.loaders[strings.ToLower(path.Ext(rel))]
		if !ok {
			continue
		}
		full := filepath.Join(d.dir, filepath.FromSlash(rel))

		desc, err := loader.Load(ctx, full)
		switch {
		case errors.Is(err, module.ErrNoDescriptor):
			d.logger.Debug("File exports no module", zap.String("path", full))
			d.skipped(full)
			continue
		case err != nil:
			if d.onError != nil {
				d.onError(full, err)
			}
			loadErr := &LoadError{Path: full, Err: err}
			if d.policy != PolicySkip {
				closeAll(out)
				return nil, loadErr
			}
			d.logger.Warn("Skipping module that failed to load", zap.String("path", full), zap.Error(err))
			continue
		}

		if err := module.Validate(desc); err != nil {
			d.logger.Debug("Skipping invalid module", zap.String("path", full), zap.Error(err))
			if c, ok := desc.(module.Closer); ok {
				_ = c.Close()
			}
			d.skipped(full)
			continue
		}
		out = append(out, Candidate{Path: full, Descriptor: desc})
	}
	return out, nil
}

func (d *Discoverer) skipped(path string) {
	if d.onSkip != nil {
		d.onSkip(path)
	}
}

// closeAll releases descriptors loaded before discovery was aborted.
func closeAll(cands []Candidate) {
	for _, c := range cands {
		if cl, ok := c.Descriptor.(module.Closer); ok {
			_ = cl.Close()
		}
	}
}

func (d *Discoverer) enumerate() ([]string, error) {
	info, err := os.Stat(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read module directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("read module directory: %s is not a directory", d.dir)
	}

	fsys := os.DirFS(d.dir)
	matches, err := doublestar.Glob(fsys, d.pattern)
	if err != nil {
		return nil, fmt.Errorf("match %q in %s: %w", d.pattern, d.dir, err)
	}
	sort.Strings(matches)

	files := matches[:0]
	for _, m := range matches {
		fi, err := fs.Stat(fsys, m)
		if err != nil || fi.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// Descriptors strips paths from candidates, keeping order.
func Descriptors(cands []Candidate) []module.Descriptor {
	out := make([]module.Descriptor, len(cands))
	for i, c := range cands {
		out[i] = c.Descriptor
	}
	return out
}
