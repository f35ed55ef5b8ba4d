package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	InsightCacheHits   uint64
	InsightsGenerated  uint64
	GenerationsFailed  uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// WorkflowMetrics plugs the global counters into the insight service.
type WorkflowMetrics struct{}

func (WorkflowMetrics) CacheHit()         { atomic.AddUint64(&globalMetrics.InsightCacheHits, 1) }
func (WorkflowMetrics) Generated()        { atomic.AddUint64(&globalMetrics.InsightsGenerated, 1) }
func (WorkflowMetrics) GenerationFailed() { atomic.AddUint64(&globalMetrics.GenerationsFailed, 1) }

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"insight_cache_hits":   atomic.LoadUint64(&globalMetrics.InsightCacheHits),
		"insights_generated":   atomic.LoadUint64(&globalMetrics.InsightsGenerated),
		"generations_failed":   atomic.LoadUint64(&globalMetrics.GenerationsFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
		atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
		defer atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
