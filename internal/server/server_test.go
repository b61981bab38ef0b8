package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
	"github.com/aristath/vnmarket/internal/clients/prediction"
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/internal/config"
	"github.com/aristath/vnmarket/internal/di"
)

// fakeUpstream serves both FastConnect and the analytics services and
// counts requests per path.
type fakeUpstream struct {
	mu     sync.Mutex
	calls  map[string]int
	routes map[string]http.HandlerFunc
}

func newFakeUpstream() *fakeUpstream {
	u := &fakeUpstream{calls: make(map[string]int), routes: make(map[string]http.HandlerFunc)}
	u.routes["/Market/AccessToken"] = jsonReply(`{"status":200,"message":"Success","data":{"accessToken":"tok-1"}}`)
	return u
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.calls[r.URL.Path]++
	handler, ok := u.routes[r.URL.Path]
	u.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

func (u *fakeUpstream) handle(path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[path] = h
}

func (u *fakeUpstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

type testEnv struct {
	server    *Server
	container *di.Container
	upstream  *fakeUpstream
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	upstream := newFakeUpstream()
	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	cfg := &config.Config{
		DataDir:        t.TempDir(),
		RequestTimeout: 5 * time.Second,
		SSI: config.SSIConfig{
			BaseURL:        upstreamServer.URL,
			ConsumerID:     "id",
			ConsumerSecret: "secret",
		},
		Analytics: config.AnalyticsConfig{
			FactorURL:     upstreamServer.URL,
			PredictionURL: upstreamServer.URL,
		},
		Cache: config.CacheConfig{
			Backend:    config.CacheBackendMemory,
			MaxEntries: 128,
			ShortTTL:   5 * time.Minute,
			LongTTL:    30 * time.Minute,
		},
		Batch: config.BatchConfig{
			Delay:          time.Millisecond,
			DebounceWindow: 10 * time.Millisecond,
		},
		Ranking: config.RankingConfig{
			Market:       "HOSE",
			TopN:         2,
			LookbackDays: 30,
			Schedule:     "@every 2h",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	return &testEnv{
		server:    New(Config{Log: zerolog.Nop(), Container: container, DevMode: true}),
		container: container,
		upstream:  upstream,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"vnmarket"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.container.Cache.Get("missing")
	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vnmarket_cache_misses_total")
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatusResponse
	decode(t, rec, &status)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, config.CacheBackendMemory, status.CacheBackend)
	assert.False(t, status.Authenticated)
	require.Len(t, status.Controllers, 2)
	assert.Equal(t, "batch", status.Controllers[0].Name)
	assert.Equal(t, "idle", string(status.Controllers[0].State))
	require.Len(t, status.Scheduled, 1)
	assert.Equal(t, "ranking_refresh", status.Scheduled[0].Name)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", badRequest("nope"), http.StatusBadRequest},
		{"invalid model", prediction.ErrInvalidModel, http.StatusBadRequest},
		{"invalid portfolio", fmt.Errorf("factor model: %w", prediction.ErrInvalidPortfolio), http.StatusBadRequest},
		{"busy", fmt.Errorf("batch: %w", batch.ErrBusy), http.StatusConflict},
		{"rate limited", &cachedhttp.StatusError{StatusCode: 429, Kind: cachedhttp.ErrRateLimited}, http.StatusTooManyRequests},
		{"unauthorized", cachedhttp.ErrUnauthorized, http.StatusUnauthorized},
		{"missing credentials", ssi.ErrMissingCredentials, http.StatusUnauthorized},
		{"timeout", cachedhttp.ErrTimeout, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"network", cachedhttp.ErrNetworkFailure, http.StatusBadGateway},
		{"invalid response", cachedhttp.ErrInvalidResponse, http.StatusBadGateway},
		{"upstream status", cachedhttp.ErrUnexpectedStatus, http.StatusBadGateway},
		{"internal", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
