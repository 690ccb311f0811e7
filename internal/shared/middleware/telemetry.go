package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry opens a server span for every API request except health checks.
// The span starts as "HTTP <method>"; Metrics renames it to the matched
// route once the mux has routed the request.
func Telemetry(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "nursinghomes-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
}
