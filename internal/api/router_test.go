package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/risco/internal/api"
	mw "github.com/kiranshivaraju/risco/internal/api/middleware"
	"github.com/kiranshivaraju/risco/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- stub counter ---

type stubCounter struct{ n int64 }

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.n++
	return c.n, nil
}

// --- router tests ---

const testKey = "rk_test_1234567890abcdef"

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(name))
	}
}

func newTestRouter(t *testing.T, hashes []string, limit int) http.Handler {
	t.Helper()
	return api.NewRouter(api.Dependencies{
		Metrics:         metrics.New(),
		Auth:            mw.NewAuth(hashes),
		RateLimit:       mw.NewRateLimit(&stubCounter{}, limit),
		HealthHandler:   named("health"),
		AnalisarHandler: named("analisar"),
		GetHandler:      named("get"),
		MatrizHandler:   named("matriz"),
		ModeloHandler:   named("modelo"),
	})
}

func hashed(t *testing.T) []string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)
	return []string{string(h)}
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, hashed(t), 60)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, hashed(t), 60)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t, hashed(t), 60)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/risco/analisar"},
		{"GET", "/risco/matriz"},
		{"GET", "/risco/modelo"},
		{"GET", "/risco/0b8f7c1e-5d1c-4b8a-9a57-4c4f3b1e2a10"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_Routing(t *testing.T) {
	router := newTestRouter(t, hashed(t), 60)

	tests := []struct {
		method, path, want string
	}{
		{"POST", "/risco/analisar", "analisar"},
		{"GET", "/risco/matriz", "matriz"},
		{"GET", "/risco/modelo", "modelo"},
		{"GET", "/risco/0b8f7c1e-5d1c-4b8a-9a57-4c4f3b1e2a10", "get"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+testKey)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Body.String())
			assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestRouter_AuthDisabled(t *testing.T) {
	router := newTestRouter(t, nil, 60)

	req := httptest.NewRequest("GET", "/risco/matriz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimited(t *testing.T) {
	router := newTestRouter(t, nil, 1)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/risco/modelo", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func TestRouter_NilRateLimit(t *testing.T) {
	router := api.NewRouter(api.Dependencies{Auth: mw.NewAuth(nil)})

	req := httptest.NewRequest("GET", "/risco/modelo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, nil, 60)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
