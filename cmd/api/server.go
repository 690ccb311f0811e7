package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nursinghomes/internal/interfaces/scheduler"
	"nursinghomes/internal/shared/config"
	"nursinghomes/internal/shared/middleware"
)

// writeGrace lets a sync that ran into its own timeout still write the
// partial counts it reports.
const writeGrace = 30 * time.Second

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
	// SyncTimeout is the longest a sync, upload or update check may run
	SyncTimeout time.Duration
	// MaxUploadSize is the largest owner CSV accepted by the upload route
	MaxUploadSize int64
}

// newAPIServer builds the main server. Sync and upload responses may only
// be written once a full refresh ends, so the write timeout follows the
// sync timeout; reads are bounded per route by middleware.Timeout.
func newAPIServer(scfg ServerConfig) *http.Server {
	return &http.Server{
		Addr:              scfg.Addr,
		Handler:           scfg.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       uploadReadTimeout(scfg.MaxUploadSize),
		WriteTimeout:      scfg.SyncTimeout + writeGrace,
		IdleTimeout:       60 * time.Second,
	}
}

// uploadReadTimeout leaves room to receive the largest upload over a slow
// link of about 1 MB per 2 seconds, and never less than 30 seconds.
func uploadReadTimeout(maxUpload int64) time.Duration {
	d := time.Duration(maxUpload>>20) * 2 * time.Second
	return max(d, 30*time.Second)
}

// newRedirectServer builds the plain HTTP server that sends clients to HTTPS.
func newRedirectServer(allowedHosts []string) *http.Server {
	return &http.Server{
		Addr:         ":80",
		Handler:      middleware.RedirectHTTPS(allowedHosts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServers creates and starts the main server and optional redirect server.
// Returns the main server and redirect server (nil if not enabled).
func StartServers(scfg ServerConfig, logger *zap.Logger) (*http.Server, *http.Server) {
	srv := newAPIServer(scfg)

	var redirectSrv *http.Server
	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = newRedirectServer(scfg.AllowedHosts)
		go func() {
			logger.Info("HTTP redirect server starting", zap.String("addr", redirectSrv.Addr))
			if err := redirectSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP redirect server error", zap.Error(err))
			}
		}()
	}

	go func() {
		fields := []zap.Field{
			zap.String("addr", scfg.Addr),
			zap.Duration("write_timeout", srv.WriteTimeout),
			zap.Duration("read_timeout", srv.ReadTimeout),
		}
		var err error
		if scfg.TLSEnabled {
			logger.Info("HTTPS server starting", fields...)
			err = srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath)
		} else {
			logger.Info("HTTP server starting", fields...)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("API server error", zap.Error(err))
		}
	}()

	return srv, redirectSrv
}

// GracefulShutdown stops the scheduler first so no new refresh starts, then
// drains both servers.
func GracefulShutdown(srv, redirectSrv *http.Server, sched *scheduler.Scheduler, timeout time.Duration, logger *zap.Logger) {
	logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if sched != nil {
		sched.Shutdown(timeout)
	}

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			logger.Error("error shutting down HTTP redirect server", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error shutting down main server", zap.Error(err))
	}

	logger.Info("server stopped")
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:       handler,
		Addr:          cfg.Server.Host + ":" + cfg.Server.Port,
		TLSEnabled:    cfg.TLS.Enabled,
		CertPath:      cfg.TLS.CertPath,
		KeyPath:       cfg.TLS.KeyPath,
		RedirectHTTP:  cfg.TLS.RedirectHTTP,
		AllowedHosts:  cfg.Server.AllowedHosts,
		SyncTimeout:   cfg.Sync.Timeout,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}
}
