package main

import (
	"net/http"

	"go.uber.org/zap"

	httphandlers "nursinghomes/internal/interfaces/http"
	"nursinghomes/internal/shared/config"
	"nursinghomes/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Read routes answer within the request timeout; sync, upload and the
	// update check may run a full refresh and are bounded by the server
	// write timeout instead.
	read := func(h http.HandlerFunc) http.Handler {
		return middleware.Timeout(cfg.Server.RequestTimeout)(h)
	}

	// Health check
	mux.HandleFunc("GET /health", httphandlers.HandleHealth)

	// Facilities
	mux.Handle("GET /api/facilities", read(deps.FacilityHandler.HandleList))
	mux.Handle("GET /api/facilities/bed-counts", read(deps.FacilityHandler.HandleBedCounts))
	mux.Handle("GET /api/facilities/{id}", read(deps.FacilityHandler.HandleGet))
	mux.HandleFunc("POST /api/facilities/sync", deps.SyncHandler.HandleSyncFacilities)
	mux.Handle("POST /api/ratings", read(deps.FacilityHandler.HandleRate))

	// Owners
	mux.Handle("GET /api/owners", read(deps.OwnerHandler.HandleSearch))
	mux.Handle("GET /api/owners/{id}", read(deps.OwnerHandler.HandleGet))
	mux.HandleFunc("POST /api/owners/upload", deps.OwnerHandler.HandleUpload)
	mux.HandleFunc("POST /api/owners/sync", deps.SyncHandler.HandleSyncOwners)

	// Daily refresh
	mux.HandleFunc("GET /api/update-check", deps.SyncHandler.HandleUpdateCheck)

	// Apply global middleware
	var handler http.Handler = mux
	if cfg.Telemetry.Enabled {
		handler = middleware.Metrics(handler)
	}
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}
	handler = middleware.Logging(logger)(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(cfg.TLS.HSTSMaxAge)(handler)
		logger.Info("TLS security middleware enabled (HSTS)", zap.Duration("max_age", cfg.TLS.HSTSMaxAge))
	}

	return handler
}
