package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheAdvisory sets Cache-Control on every response. Only production GET
// responses may be cached, privately, and they vary by Authorization.
func CacheAdvisory(production bool, maxAge time.Duration) func(http.Handler) http.Handler {
	private := fmt.Sprintf("private, max-age=%d", int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if production && r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", private)
				w.Header().Add("Vary", "Authorization")
			} else {
				w.Header().Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
