package module

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bare struct{ name string }

func (b bare) Config() Config                { return Config{Name: b.name} }
func (b bare) Initialize(ctx *Context) error { return nil }

func TestValidate(t *testing.T) {
	noop := func(*Context) error { return nil }

	tests := []struct {
		name string
		desc Descriptor
		want error
	}{
		{name: "func descriptor", desc: New(Config{Name: "weather"}, noop)},
		{name: "custom type", desc: bare{name: "news.v2"}},
		{name: "nil", desc: nil, want: ErrInvalidDescriptor},
		{name: "missing initialize", desc: New(Config{Name: "weather"}, nil), want: ErrMissingInitialize},
		{name: "missing name", desc: New(Config{}, noop), want: ErrMissingName},
		{name: "nested path", desc: bare{name: "a/b"}, want: ErrInvalidName},
		{name: "whitespace", desc: bare{name: "a b"}, want: ErrInvalidName},
		{name: "dot", desc: bare{name: "."}, want: ErrInvalidName},
		{name: "dot dot", desc: bare{name: ".."}, want: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.desc)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestFuncInitialize(t *testing.T) {
	boom := errors.New("boom")
	d := New(Config{Name: "x"}, func(ctx *Context) error {
		require.NoError(t, ctx.Response.JSON(map[string]string{"path": ctx.Request.URL.Path}))
		return boom
	}).WithSource("scraper/x.js")

	ctx := NewContext(httptest.NewRequest("GET", "/api/x", nil), nil)
	assert.ErrorIs(t, d.Initialize(ctx), boom)
	assert.Equal(t, "scraper/x.js", d.Source())
	assert.Contains(t, string(ctx.Response.Bytes()), `"path": "/api/x"`)
	assert.NotNil(t, ctx.Ctx())
}
