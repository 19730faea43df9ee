package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// APIKeyMiddleware validates the configured API key on every request. The
// key can arrive via Authorization header or ?apikey= query param. An empty
// configured key disables authentication.
func APIKeyMiddleware(keyFn func() string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			expected := keyFn()
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := extractKey(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractKey pulls the API key from the request.
// Priority: Authorization header > ?apikey= query param.
func extractKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if key := strings.TrimSpace(parts[1]); key != "" {
				return key
			}
		}
	}

	if key := strings.TrimSpace(r.URL.Query().Get("apikey")); key != "" {
		return key
	}

	return ""
}
