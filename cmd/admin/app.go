package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/owner"
	"nursinghomes/internal/domain/update"
	cmsclient "nursinghomes/internal/infrastructure/cms"
	"nursinghomes/internal/infrastructure/postgres"
	"nursinghomes/internal/infrastructure/redis"
	"nursinghomes/internal/shared/config"
	"nursinghomes/internal/shared/lock"
	"nursinghomes/internal/shared/logging"
)

// app holds what the admin commands need. It skips the HTTP layer and the
// notifier.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *postgres.DB
	redis  *redis.Client
	sync   *cms.Service
	gate   *update.Gate
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rc, err := redis.NewClient(redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = rc
		locker = redis.NewLocker(rc, "")
	}

	ownerRepo := postgres.NewOwnerRepository(db)
	facilityRepo := postgres.NewFacilityRepository(db)

	client := cmsclient.NewClient(cmsclient.Config{
		BaseURL:         cfg.CMS.BaseURL,
		FacilityDataset: cfg.CMS.FacilityDataset,
		OwnerDataset:    cfg.CMS.OwnerDataset,
		PageSize:        cfg.CMS.PageSize,
		Timeout:         cfg.CMS.Timeout,
	})

	a.sync = cms.NewService(client, owner.NewService(ownerRepo, logger), facilityRepo, locker, logger, cms.Config{
		BatchSize: cfg.Sync.BatchSize,
		LockTTL:   cfg.Sync.LockTTL,
	})
	a.gate = update.NewGate(postgres.NewTrackerRepository(db), a.sync, locker, nil, logger, cfg.Sync.LockTTL)

	return a, nil
}

func (a *app) close() {
	a.logger.Sync()
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

// withApp opens the application for the duration of one command.
func withApp(run func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Sync.Timeout)
		defer cancel()
		cmd.SetContext(ctx)

		return run(cmd, a)
	}
}
