package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *Lobby, *memoryCounter) {
	t.Helper()

	counter := newMemoryCounter()
	srv, lobby := newTestServerWithCounter(t, cfg, counter)

	return srv, lobby, counter
}

func newTestServerWithCounter(t *testing.T, cfg *Config, counter Counter) (*httptest.Server, *Lobby) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	lobby := newLobby(cfg)
	go lobby.run(ctx)

	errs := make(chan error, 64)
	go drainErrors(ctx, cfg, errs)

	srv := httptest.NewServer(newRouter(cfg, lobby, counter, errs))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-lobby.done
	})

	return srv, lobby
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestVersion(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	_, body := get(t, srv.URL+"/version")
	assert.Equal(t, "numberduel v"+releaseVersion+"\n", body)
}

func TestHomePageUsesPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/duel"
	srv, _, _ := newTestServer(t, cfg)

	resp, body := get(t, srv.URL+"/duel/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `data-prefix="/duel"`)
	assert.Contains(t, body, `/duel/assets/app.js`)
	assert.Contains(t, body, `/duel/favicon.svg`)
	assert.NotContains(t, body, "{{")
}

func TestAssets(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{path: "/assets/app.css", status: http.StatusOK, contentType: "text/css; charset=utf-8"},
		{path: "/assets/app.js", status: http.StatusOK, contentType: "text/javascript; charset=utf-8"},
		{path: "/assets/missing.js", status: http.StatusNotFound},
		{path: "/favicon.svg", status: http.StatusOK, contentType: "image/svg+xml"},
		{path: "/favicons/site.webmanifest", status: http.StatusOK, contentType: "application/manifest+json"},
		{path: "/favicons/missing.png", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestRobots(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	_, body := get(t, srv.URL+"/robots.txt")
	assert.True(t, strings.HasPrefix(body, "User-agent: *"))
}

func TestQRCode(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	resp, body := get(t, srv.URL+"/qr")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))
}

func TestSiteURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/duel"

	r := httptest.NewRequest(http.MethodGet, "http://example.com/duel/qr", nil)
	assert.Equal(t, "http://example.com/duel/", siteURL(cfg, r))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://example.com/duel/", siteURL(cfg, r))
}

func TestProfileRoutesOnlyWhenEnabled(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())
	resp, _ := get(t, srv.URL+"/pprof/cmdline")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg := testConfig()
	cfg.profile = true
	srv, _, _ = newTestServer(t, cfg)
	resp, _ = get(t, srv.URL+"/pprof/cmdline")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", realIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:1234", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:1234", realIP(r))
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

func TestServePageReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	cfg.port = ln.Addr().(*net.TCPAddr).Port

	errc := make(chan error, 1)
	go func() { errc <- ServePage(context.Background(), cfg) }()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serving on")
	case <-time.After(5 * time.Second):
		t.Fatal("ServePage kept running on a port that was already taken")
	}
}

func TestServePageStopsCleanly(t *testing.T) {
	cfg := testConfig()
	cfg.port = 0

	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- ServePage(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("ServePage did not return after cancel")
	}
}
