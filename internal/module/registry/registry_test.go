package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

func named(name, marker string) *module.Func {
	return module.New(module.Config{Name: name, Description: marker}, func(*module.Context) error { return nil })
}

type mapMirror struct {
	mu    sync.Mutex
	items map[string]module.Descriptor
}

func (m *mapMirror) Set(key string, d module.Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]module.Descriptor)
	}
	m.items[key] = d
}

type closing struct {
	*module.Func
	closed bool
	err    error
}

func (c *closing) Close() error {
	c.closed = true
	return c.err
}

func TestBuildLastWriteWins(t *testing.T) {
	reg := Build([]module.Descriptor{
		named("weather", "first"),
		named("news", "only"),
		named("weather", "second"),
	})

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"weather", "news"}, reg.Names())

	d, ok := reg.Get("weather")
	require.True(t, ok)
	assert.Equal(t, "second", d.Config().Description)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestBuildClosesReplaced(t *testing.T) {
	first := &closing{Func: named("weather", "first")}
	second := &closing{Func: named("weather", "second")}

	reg := Build([]module.Descriptor{first, second})

	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.Same(t, second, mustGet(t, reg, "weather"))

	require.NoError(t, reg.Close())
	assert.True(t, second.closed)
}

func TestBuildEmpty(t *testing.T) {
	reg := Build(nil)
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.Names())
}

func TestMirrorTo(t *testing.T) {
	reg := Build([]module.Descriptor{named("a", ""), named("b", "")})
	target := &mapMirror{}

	ok := reg.MirrorTo(target, logging.Nop())

	assert.True(t, ok)
	assert.Len(t, target.items, 2)
	assert.Same(t, mustGet(t, reg, "a"), target.items["a"])
}

func TestMirrorToWrongShape(t *testing.T) {
	reg := Build([]module.Descriptor{named("a", "")})

	for _, target := range []any{nil, map[string]any{}, "registry", struct{}{}, (*mapMirror)(nil)} {
		core, logs := observer.New(zapcore.WarnLevel)
		var ok bool
		assert.NotPanics(t, func() {
			ok = reg.MirrorTo(target, logging.Wrap(zap.New(core)))
		})
		assert.False(t, ok)
		assert.Equal(t, 1, logs.Len())
	}
}

func TestClose(t *testing.T) {
	a := &closing{Func: named("a", "")}
	b := &closing{Func: named("b", ""), err: errors.New("stuck")}
	reg := Build([]module.Descriptor{a, named("plain", ""), b})

	err := reg.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.ErrorContains(t, err, "close module b")
}

func mustGet(t *testing.T, reg *Registry, name string) module.Descriptor {
	t.Helper()
	d, ok := reg.Get(name)
	require.True(t, ok)
	return d
}
