package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/config"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/discovery"
)

const helloJS = `
module.exports = {
  config: { name: "hello", description: "Greets the caller", tags: ["demo"] },
  initialize: ({ req, res }) => res.json({ hello: req.query.name || "world" }),
};
`

func testConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Modules.Dir = dir
	cfg.RateLimit.Enabled = false
	cfg.Logging.Development = true
	cfg.Fetch.Retries = 0
	return cfg
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestServerEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<ul><li>one</li><li>two</li></ul>`)
	}))
	defer upstream.Close()

	cfg := testConfig(t, map[string]string{
		"hello.js":   helloJS,
		"items.yaml": "name: items\nurl: " + upstream.URL + "\nselector: li\n",
		"util.js":    "module.exports = { helper: true };",
		"README.md":  "not a module",
	})

	s, err := NewServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.Routes())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/hello?name=ada")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, "{\n  \"hello\": \"ada\"\n}", body(t, resp))

	resp, err = http.Get(srv.URL + "/api/items")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), `"count": 2`)

	resp, err = http.Get(srv.URL + "/api?q=greets")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), `"name":"hello"`)

	resp, err = http.Get(srv.URL + "/api/util")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerLoadPolicy(t *testing.T) {
	files := map[string]string{
		"hello.js":  helloJS,
		"broken.js": "module.exports = {",
	}

	cfg := testConfig(t, files)
	_, err := NewServer(context.Background(), cfg, nil)
	var loadErr *discovery.LoadError
	require.ErrorAs(t, err, &loadErr)

	cfg = testConfig(t, files)
	cfg.Modules.LoadPolicy = config.PolicySkip
	s, err := NewServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.Routes())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t, map[string]string{"hello.js": helloJS})
	cfg.Server.ShutdownTimeout = time.Second

	s, err := NewServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
