package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHSTS(t *testing.T) {
	handler := HSTS(365 * 24 * time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/facilities/bed-counts", nil))

	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}

func TestRedirectHTTPS(t *testing.T) {
	tests := []struct {
		name          string
		allowedHosts  []string
		target        string
		host          string
		forwardedHost string
		wantStatus    int
		wantLocation  string
	}{
		{
			name:         "listing keeps its query",
			allowedHosts: []string{"homes.example.org"},
			target:       "/api/facilities?state=TX&sortBy=buy",
			host:         "homes.example.org",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://homes.example.org/api/facilities?state=TX&sortBy=buy",
		},
		{
			name:         "plain http port is dropped",
			allowedHosts: []string{"homes.example.org"},
			target:       "/api/owners/upload?mode=replace",
			host:         "homes.example.org:80",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://homes.example.org/api/owners/upload?mode=replace",
		},
		{
			name:          "proxy host wins",
			allowedHosts:  []string{"homes.example.org"},
			target:        "/api/update-check",
			host:          "10.0.0.7",
			forwardedHost: "homes.example.org",
			wantStatus:    http.StatusMovedPermanently,
			wantLocation:  "https://homes.example.org/api/update-check",
		},
		{
			name:          "forged proxy host is rejected",
			allowedHosts:  []string{"homes.example.org"},
			target:        "/api/facilities",
			host:          "homes.example.org",
			forwardedHost: "phish.example.com",
			wantStatus:    http.StatusBadRequest,
		},
		{
			name:         "ipv6 literal keeps brackets",
			target:       "/health",
			host:         "[::1]:80",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://[::1]/health",
		},
		{
			name:         "any host without allow list",
			target:       "/api/owners?search=acme",
			host:         "staging.internal",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://staging.internal/api/owners?search=acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Host = tt.host
			if tt.forwardedHost != "" {
				req.Header.Set("X-Forwarded-Host", tt.forwardedHost)
			}
			rr := httptest.NewRecorder()

			RedirectHTTPS(tt.allowedHosts).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestHostMatches(t *testing.T) {
	allowed := []string{" Homes.Example.org ", "api.example.org:8443", "::1"}

	tests := []struct {
		host string
		want bool
	}{
		{"homes.example.org", true},
		{"homes.example.org:443", true},
		{"api.example.org:8443", true},
		{"api.example.org", false},
		{"api.example.org:443", false},
		{"[::1]:8080", true},
		{"::1", true},
		{"[::2]:8080", false},
		{"example.org", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := hostMatches(tt.host, allowed); got != tt.want {
				t.Errorf("hostMatches(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}
