package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// HSTS tells browsers to reach the API over HTTPS only for maxAge. It is
// mounted only when the server terminates TLS itself.
func HSTS(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("max-age=%d; includeSubDomains", int64(maxAge/time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Strict-Transport-Security", value)
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectHTTPS answers plain HTTP with a permanent redirect to the same
// path and query over HTTPS on the default port. X-Forwarded-Host wins over
// Host. With allowed hosts configured, any other host gets 400 so a forged
// header cannot send clients elsewhere.
func RedirectHTTPS(allowedHosts []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}

		if len(allowedHosts) > 0 && !hostMatches(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		name := hostname(strings.ToLower(strings.TrimSpace(host)))
		if strings.Contains(name, ":") {
			name = "[" + name + "]"
		}
		http.Redirect(w, r, "https://"+name+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// hostMatches reports whether host, with or without a port, is one of
// allowed. An allowed entry without a port matches any port; one with a
// port matches only that port.
func hostMatches(host string, allowed []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	name := hostname(host)

	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(a); err == nil {
			if a == host {
				return true
			}
			continue
		}
		if strings.Trim(a, "[]") == name {
			return true
		}
	}
	return false
}

// hostname strips the port and IPv6 brackets from hostport.
func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}
