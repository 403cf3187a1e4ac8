package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
)

type captureMetrics struct {
	mu        sync.Mutex
	decisions []bool
}

func (m *captureMetrics) RecordDecision(_ *http.Request, _ models.RouteType, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, allowed)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_SetsHeadersOnAllowed(t *testing.T) {
	l := newTestLimiter(t, models.DefaultLimitTable(), nil)
	handler := Middleware(l)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testRequest("/api/orders", "203.0.113.9"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.True(t, time.Unix(reset, 0).After(time.Now()))
}

func TestMiddleware_Rejects429(t *testing.T) {
	table := tableWith(models.RouteLimit{
		RouteType: models.RouteStandard, MaxRequests: 1, WindowMinutes: 1, Enabled: true,
	})
	l := newTestLimiter(t, table, nil)
	handler := Middleware(l)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testRequest("/api/orders", "203.0.113.9"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, testRequest("/api/orders", "203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter >= 1 && retryAfter <= 61)

	var body models.RateLimitedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Equal(t, retryAfter, body.RetryAfter)
}

func TestMiddleware_ExemptHasNoHeaders(t *testing.T) {
	l := newTestLimiter(t, models.DefaultLimitTable(), nil)
	handler := Middleware(l)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testRequest("/api/products", "203.0.113.9"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_RecordsMetrics(t *testing.T) {
	table := tableWith(models.RouteLimit{
		RouteType: models.RouteStandard, MaxRequests: 1, WindowMinutes: 1, Enabled: true,
	})
	l := newTestLimiter(t, table, nil)
	metrics := &captureMetrics{}
	handler := Middleware(l, WithMetrics(metrics))(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), testRequest("/api/orders", "203.0.113.9"))
	handler.ServeHTTP(httptest.NewRecorder(), testRequest("/api/orders", "203.0.113.9"))

	require.Len(t, metrics.decisions, 2)
	assert.True(t, metrics.decisions[0])
	assert.False(t, metrics.decisions[1])
}
