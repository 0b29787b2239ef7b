package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdfcterminal/gateway/middleware"
)

func TestRouterServesMetricsAndAppliesSecurityHeaders(t *testing.T) {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	doer := &selectorDoer{byRequest: happyMetrics()}
	f := newTestFacade(t, doer, now)

	handler := f.NewRouter(RouterConfig{
		CORS:     middleware.CORSConfig{},
		Security: SecurityConfig{ConnectSrc: []string{"https://rpc.example"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
}

func TestRouterTroveNotFoundReturns404(t *testing.T) {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	doer := &selectorDoer{byRequest: map[string]string{
		"0xb90bce45": "0x" + padHex32("0"), // GetMultipleSortedTroves: zero-length page
	}}
	f := newTestFacade(t, doer, now)
	handler := f.NewRouter(RouterConfig{CORS: middleware.CORSConfig{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/troves/0x1234567890abcdef1234567890abcdef12345678", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterHealthDegradesOnDependencyFailure(t *testing.T) {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	doer := &selectorDoer{byRequest: happyMetrics()}
	f := newTestFacade(t, doer, now)
	handler := f.NewRouter(RouterConfig{CORS: middleware.CORSConfig{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// The façade has no durable store in this fixture, so health must
	// degrade even though RPC answers every probe.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func padHex32(hex string) string {
	for len(hex) < 64 {
		hex = "0" + hex
	}
	return hex
}
