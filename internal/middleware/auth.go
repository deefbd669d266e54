package middleware

import (
	"crypto/subtle"
	"net/http"
)

const (
	// APIKeyHeader carries the key on API requests.
	APIKeyHeader = "X-API-Key"
	// APIKeyCookie carries the key for browser sessions.
	APIKeyCookie = "api_key"
)

// AuthMiddleware requires the configured API key on every request that can
// change state. Safe methods pass through. An empty key disables the check.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if !validKey(r, apiKey) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validKey(r *http.Request, apiKey string) bool {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		if cookie, err := r.Cookie(APIKeyCookie); err == nil {
			presented = cookie.Value
		}
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) == 1
}
