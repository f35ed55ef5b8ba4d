package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RequestIDKey contextKey = "request_id"
)

// public endpoints tidak perlu API key
func isPublicPath(p string) bool {
	return p == "/health" || p == "/metrics" || strings.HasPrefix(p, "/healthz/")
}

// APIKeyAuth validates the bearer key and puts the owning user id into the context.
// validKeys maps user id -> api key.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				WriteError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// constant-time comparison
			var userID string
			for id, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					userID = id
					break
				}
			}
			if userID == "" {
				WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, or "" when there is none.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
