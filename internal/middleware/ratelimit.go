package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor is one caller's limiter plus when it was last used
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller: capacity tokens, refilled at refillRate per second.
type RateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	capacity   int
	refillRate int
	stop       chan struct{}
}

func NewRateLimiter(capacity, refillRate int) *RateLimiter {
	rl := &RateLimiter{
		visitors:   make(map[string]*visitor),
		capacity:   capacity,
		refillRate: refillRate,
		stop:       make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.refillRate), rl.capacity)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() { close(rl.stop) }

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.evictIdle(time.Now(), 10*time.Minute)
	}
}

// evictIdle drops callers not seen for longer than idle
func (rl *RateLimiter) evictIdle(now time.Time, idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(rl.visitors, key)
		}
	}
}

// RateLimit limits each authenticated user (or remote address when anonymous).
// Generation is expensive, so this sits in front of every /v1 route.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := UserIDFromContext(r.Context())
			if key == "" {
				key = "ip:" + r.RemoteAddr
			}
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
