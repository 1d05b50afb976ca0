package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl marks anonymous GET and HEAD responses as publicly cacheable
// for maxAge. Requests carrying credentials get "private, no-store".
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	public := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method != http.MethodGet && r.Method != http.MethodHead:
			case r.Header.Get("Authorization") != "":
				w.Header().Set("Cache-Control", "private, no-store")
			default:
				w.Header().Set("Cache-Control", public)
			}
			next.ServeHTTP(w, r)
		})
	}
}
