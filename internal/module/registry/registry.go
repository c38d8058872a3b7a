package registry

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

// Mirror is the shape an externally owned registry must have to receive a
// copy of every loaded module.
type Mirror interface {
	Set(key string, d module.Descriptor)
}

// Registry maps route names to descriptors. It is populated once by Build
// and never mutated afterwards, so concurrent reads need no locking.
type Registry struct {
	entries map[string]module.Descriptor
	order   []string
}

// Build inserts descriptors in discovery order. A later descriptor with the
// same name replaces the earlier one but keeps its position; the replaced
// descriptor is closed if it implements module.Closer.
func Build(descs []module.Descriptor) *Registry {
	r := &Registry{entries: make(map[string]module.Descriptor, len(descs))}
	for _, d := range descs {
		name := d.Config().Name
		prev, ok := r.entries[name]
		if !ok {
			r.order = append(r.order, name)
		} else if c, isCloser := prev.(module.Closer); isCloser && !same(prev, d) {
			_ = c.Close()
		}
		r.entries[name] = d
	}
	return r
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (module.Descriptor, bool) {
	d, ok := r.entries[name]
	return d, ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns module names in insertion order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Each calls fn for every entry in insertion order.
func (r *Registry) Each(fn func(name string, d module.Descriptor)) {
	for _, name := range r.order {
		fn(name, r.entries[name])
	}
}

// MirrorTo copies every entry into target. A missing target, a nil pointer
// or one without a Set(string, module.Descriptor) method is logged and skipped.
func (r *Registry) MirrorTo(target any, logger *logging.Logger) bool {
	m, ok := target.(Mirror)
	if !ok || isNil(target) {
		logger.Warn("Shared API registry is not available, skipping mirror",
			zap.String("type", fmt.Sprintf("%T", target)))
		return false
	}
	r.Each(func(name string, d module.Descriptor) {
		m.Set(name, d)
	})
	return true
}

// Close releases resources held by descriptors that implement module.Closer.
func (r *Registry) Close() error {
	var first error
	r.Each(func(name string, d module.Descriptor) {
		c, ok := d.(module.Closer)
		if !ok {
			return
		}
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("close module %s: %w", name, err)
		}
	})
	return first
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func same(a, b module.Descriptor) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() && a == b
}
