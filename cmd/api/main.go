package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/interfaces/scheduler"
	"nursinghomes/internal/shared/config"
	"nursinghomes/internal/shared/logging"
	"nursinghomes/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:        cfg.Telemetry.ServiceName,
			Environment:        cfg.Telemetry.Environment,
			OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
			MetricsPort:        cfg.Telemetry.MetricsPort,
			FacilityDataset:    cfg.CMS.FacilityDataset,
			OwnerDataset:       cfg.CMS.OwnerDataset,
			SyncDurationMetric: cms.SyncDurationMetric,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(deps.Gate, scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			RunTimeout:    cfg.Sync.Timeout,
		}, logger.Named("scheduler"))
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		logger.Info("scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg, logger)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg), logger)

	// SIGHUP runs the update check now; SIGINT and SIGTERM shut down
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig != syscall.SIGHUP {
			break
		}
		if sched == nil {
			logger.Warn("SIGHUP ignored, scheduler is disabled")
			continue
		}
		sched.TriggerNow()
	}

	GracefulShutdown(srv, redirectSrv, sched, 30*time.Second, logger)
	return nil
}
