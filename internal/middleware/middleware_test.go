package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"user-1": "key-1", "user-2": "key-2"})(echoUser())

	cases := []struct {
		name, path, header string
		status             int
		body               string
	}{
		{"bearer", "/v1/insights/me", "Bearer key-2", http.StatusOK, "user-2"},
		{"raw key", "/v1/insights/me", "key-1", http.StatusOK, "user-1"},
		{"missing", "/v1/insights/me", "", http.StatusUnauthorized, `"error":"missing Authorization header"`},
		{"wrong", "/v1/insights/me", "Bearer nope", http.StatusUnauthorized, `"error":"invalid API key"`},
		{"health is public", "/health", "", http.StatusOK, ""},
		{"probes are public", "/healthz/live", "", http.StatusOK, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, c.path, nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, c.status, rec.Code)
			assert.Contains(t, rec.Body.String(), c.body)
		})
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	limiter := NewRateLimiter(2, 0)
	defer limiter.Stop()
	h := APIKeyAuth(map[string]string{"a": "ka", "b": "kb"})(RateLimit(limiter)(echoUser()))

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/insights/me", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("ka"))
	assert.Equal(t, http.StatusOK, do("ka"))
	assert.Equal(t, http.StatusTooManyRequests, do("ka"))
	assert.Equal(t, http.StatusOK, do("kb"), "buckets are per user")
}

func TestRateLimiter_KeepsFractionalRefill(t *testing.T) {
	limiter := NewRateLimiter(2, 4)
	defer limiter.Stop()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, limiter.allowAt("u", t0))
	assert.True(t, limiter.allowAt("u", t0))
	assert.False(t, limiter.allowAt("u", t0))

	// 375ms at 4/s refills 1.5 tokens; the half token must carry over
	assert.True(t, limiter.allowAt("u", t0.Add(375*time.Millisecond)))
	assert.True(t, limiter.allowAt("u", t0.Add(500*time.Millisecond)))
	assert.False(t, limiter.allowAt("u", t0.Add(500*time.Millisecond)))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	limiter := NewRateLimiter(1, 0)
	defer limiter.Stop()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, limiter.allowAt("u", t0))
	assert.False(t, limiter.allowAt("u", t0.Add(time.Minute)))

	limiter.evictIdle(t0.Add(12*time.Minute), 10*time.Minute)
	assert.True(t, limiter.allowAt("u", t0.Add(12*time.Minute)), "evicted caller starts with a full bucket")
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/insights/fintech", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, e.Level)
	assert.Equal(t, http.StatusBadGateway, e.Data["status"])
	assert.Equal(t, "/v1/insights/fintech", e.Data["path"])
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	log, _ := test.NewNullLogger()
	rec := httptest.NewRecorder()
	RequestLogger(log)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestHealthAndReadiness(t *testing.T) {
	ok := map[string]HealthChecker{"database": CheckFunc(func(context.Context) error { return nil })}
	down := map[string]HealthChecker{"database": CheckFunc(func(context.Context) error { return errors.New("dial tcp: refused") })}

	rec := httptest.NewRecorder()
	HealthHandler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = httptest.NewRecorder()
	HealthHandler(down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")

	rec = httptest.NewRecorder()
	ReadinessHandler(down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestMetrics_WorkflowCounters(t *testing.T) {
	before := GetMetrics()["insights_generated"].(uint64)
	WorkflowMetrics{}.Generated()
	WorkflowMetrics{}.CacheHit()

	rec := httptest.NewRecorder()
	MetricsMiddleware(http.HandlerFunc(MetricsHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"insight_cache_hits"`))
	assert.Equal(t, before+1, GetMetrics()["insights_generated"].(uint64))
}
