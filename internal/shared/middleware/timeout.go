package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"Request timed out"}`

// Timeout bounds a read route to d and answers 503 with a JSON error when
// the handler overruns. A zero d leaves the route unbounded. Sync and upload
// routes stay outside it; the server write timeout covers them.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		bounded := http.TimeoutHandler(next, d, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			bounded.ServeHTTP(w, r)
		})
	}
}
