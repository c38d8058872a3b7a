package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func testLoader(cfg Config) *Loader {
	fetchCfg := client.DefaultConfig()
	fetchCfg.Retries = 0
	return NewLoader(cfg, &Host{Scraper: scraper.NewOps(), Fetch: client.New(fetchCfg)}, nil)
}

func load(t *testing.T, src string) *Module {
	t.Helper()
	d, err := testLoader(DefaultConfig()).Load(context.Background(), writeScript(t, src))
	require.NoError(t, err)
	m, ok := d.(*Module)
	require.True(t, ok)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func invoke(m module.Descriptor, target string) (*module.Context, error) {
	ctx := module.NewContext(httptest.NewRequest(http.MethodGet, target, nil), nil)
	return ctx, m.Initialize(ctx)
}

func TestLoadDescribesModule(t *testing.T) {
	m := load(t, `
module.exports = {
  config: { name: "hello", description: "says hi", tags: ["demo", 3] },
  initialize: () => {},
};`)

	cfg := m.Config()
	assert.Equal(t, "hello", cfg.Name)
	assert.Equal(t, "says hi", cfg.Description)
	assert.Equal(t, []string{"demo"}, cfg.Tags)
	assert.NoError(t, module.Validate(m))
	assert.Equal(t, 1, m.Stats()["live"])
}

func TestInitializePrettyPrintsFirstJSON(t *testing.T) {
	m := load(t, `
let calls = 0;
module.exports = {
  config: { name: "hello" },
  initialize: ({ req, res }) => {
    calls++;
    res.json({ message: "hi", q: req.query.name || null, calls });
    res.json({ again: true });
  },
};`)

	ctx, err := invoke(m, "/api/hello?name=bob")
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"message\": \"hi\",\n  \"q\": \"bob\",\n  \"calls\": 1\n}{\"again\":true}", string(ctx.Response.Bytes()))
	assert.Equal(t, "application/json", ctx.Response.Header().Get("Content-Type"))
}

func TestSendObjectUsesTransform(t *testing.T) {
	m := load(t, `
exports.config = { name: "send" };
exports.initialize = ({ res }) => res.status(201).set("X-Mod", "send").send({ a: 1 });
`)

	ctx, err := invoke(m, "/api/send")
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"a\": 1\n}", string(ctx.Response.Bytes()))
	assert.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "send", ctx.Response.Header().Get("X-Mod"))
}

func TestSendStringLeavesTransformArmed(t *testing.T) {
	m := load(t, `
module.exports = { config: { name: "html" }, initialize: (ctx) => ctx.response.send("<b>hi</b>") };
`)

	ctx, err := invoke(m, "/api/html")
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", string(ctx.Response.Bytes()))
	assert.True(t, ctx.Response.Armed())
}

func TestAsyncInitialize(t *testing.T) {
	m := load(t, `
module.exports = {
  config: { name: "async" },
  initialize: async ({ res }) => {
    const v = await Promise.resolve(2);
    res.json({ v });
  },
};`)

	ctx, err := invoke(m, "/api/async")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"v\": 2\n}", string(ctx.Response.Bytes()))
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
		wantErr error
	}{
		{name: "sync throw", body: `() => { throw new Error("boom"); }`, wantMsg: "boom"},
		{name: "async rejection", body: `async () => { throw new Error("async boom"); }`, wantMsg: "async boom"},
		{name: "rejected promise", body: `() => Promise.reject("nope")`, wantMsg: "nope"},
		{name: "pending promise", body: `() => new Promise(() => {})`, wantErr: ErrUnsettled},
		{name: "reference error", body: `() => missing.call()`, wantMsg: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := load(t, `module.exports = { config: { name: "f" }, initialize: `+tt.body+` };`)

			_, err := invoke(m, "/api/f")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var se *ScriptError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, PhaseInitialize, se.Phase)
			assert.Contains(t, se.Message, tt.wantMsg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	loader := testLoader(DefaultConfig())

	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax error", src: `module.exports = {`},
		{name: "top level throw", src: `throw new Error("broken");`},
		{name: "unknown require", src: `const fs = require("fs");`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), writeScript(t, tt.src))
			var se *ScriptError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, PhaseLoad, se.Phase)
		})
	}

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithoutDescriptor(t *testing.T) {
	loader := testLoader(DefaultConfig())

	for _, src := range []string{
		`module.exports = { helper: 1 };`,
		`exports.config = { name: "x" };`,
		`exports.initialize = () => {};`,
		`module.exports = 42;`,
		`module.exports = { config: "x", initialize() {} };`,
	} {
		_, err := loader.Load(context.Background(), writeScript(t, src))
		assert.ErrorIs(t, err, module.ErrNoDescriptor, src)
	}
}

func TestTimeoutDiscardsRuntime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	d, err := testLoader(cfg).Load(context.Background(), writeScript(t, `
module.exports = {
  config: { name: "spin" },
  initialize: ({ req, res }) => {
    if (req.query.spin) { for (;;) {} }
    res.json({ ok: true });
  },
};`))
	require.NoError(t, err)
	m := d.(*Module)
	defer m.Close()

	_, err = invoke(m, "/api/spin?spin=1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, m.Stats()["live"])

	ctx, err := invoke(m, "/api/spin")
	require.NoError(t, err)
	assert.Contains(t, string(ctx.Response.Bytes()), `"ok": true`)
}

func TestConcurrentInvocations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolSize = 2
	d, err := testLoader(cfg).Load(context.Background(), writeScript(t, `
module.exports = { config: { name: "c" }, initialize: ({ req, res }) => res.json({ n: Number(req.query.n) }) };
`))
	require.NoError(t, err)
	m := d.(*Module)
	defer m.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, err := invoke(m, fmt.Sprintf("/api/c?n=%d", i))
			if err == nil && string(ctx.Response.Bytes()) != fmt.Sprintf("{\n  \"n\": %d\n}", i) {
				err = errors.New("unexpected body " + string(ctx.Response.Bytes()))
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, m.Stats()["live"].(int), 2)
}

func TestScraperHostModule(t *testing.T) {
	m := load(t, `
const scraper = require("scraper");
module.exports = {
  config: { name: "s" },
  initialize: ({ res }) => {
    const doc = scraper.load("<html><head><title>T</title></head><body><p class='x'>one</p><p>two</p></body></html>");
    res.json({ title: doc.title(), items: doc.select("p").map((e) => e.text) });
  },
};`)

	ctx, err := invoke(m, "/api/s")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"title\": \"T\",\n  \"items\": [\n    \"one\",\n    \"two\"\n  ]\n}", string(ctx.Response.Bytes()))
}

func TestHTTPHostModule(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp":21}`))
	}))
	defer upstream.Close()

	m := load(t, fmt.Sprintf(`
const http = require("http");
module.exports = {
  config: { name: "weather" },
  initialize: async ({ res }) => {
    const r = await http.get(%q);
    res.json({ status: r.status, ok: r.ok, temp: r.json().temp });
  },
};`, upstream.URL))

	ctx, err := invoke(m, "/api/weather")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"status\": 200,\n  \"ok\": true,\n  \"temp\": 21\n}", string(ctx.Response.Bytes()))
}

func TestConsoleAndLogRouting(t *testing.T) {
	m := load(t, `
module.exports = {
  config: { name: "chatty" },
  initialize: ({ res, log }) => {
    console.warn("careful", { n: 1 });
    log.main("done");
    res.end();
  },
};`)

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := module.NewContext(httptest.NewRequest(http.MethodGet, "/api/chatty", nil), logging.Wrap(zap.New(core)).Module("chatty"))
	require.NoError(t, m.Initialize(ctx))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, `careful {"n":1}`, logs.All()[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, "done", logs.All()[1].Message)
	assert.True(t, ctx.Response.Written())
	assert.Empty(t, ctx.Response.Bytes())
}
