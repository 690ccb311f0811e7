package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
	"nursinghomes/internal/domain/update"
	cmsclient "nursinghomes/internal/infrastructure/cms"
	"nursinghomes/internal/infrastructure/firebase"
	"nursinghomes/internal/infrastructure/postgres"
	"nursinghomes/internal/infrastructure/redis"
	httphandlers "nursinghomes/internal/interfaces/http"
	"nursinghomes/internal/shared/config"
	"nursinghomes/internal/shared/lock"
	"nursinghomes/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *redis.Client

	// Handlers
	FacilityHandler *httphandlers.FacilityHandler
	OwnerHandler    *httphandlers.OwnerHandler
	SyncHandler     *httphandlers.SyncHandler

	// Services (for scheduler)
	SyncService *cms.Service
	Gate        *update.Gate
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.DBName))

	deps := &Dependencies{DB: db}

	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			deps.Close()
			return nil, err
		}
		logger.Info("database schema ensured")
	}

	// Lock: Redis when configured so several replicas share it
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rc, err := redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Redis = rc
		locker = redis.NewLocker(rc, "")
		logger.Info("using redis dataset lock", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("using in-process dataset lock")
	}

	// Notifier is optional
	var notifier update.Notifier
	if cfg.Firebase.CredentialsFile != "" {
		var msgs *messages.Messages
		if cfg.Firebase.MessagesFile != "" {
			if msgs, err = messages.Load(cfg.Firebase.MessagesFile); err != nil {
				deps.Close()
				return nil, err
			}
		}
		fc, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.Topic, msgs, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize refresh notifier: %w", err)
		}
		notifier = fc
		logger.Info("refresh notifications enabled", zap.String("topic", cfg.Firebase.Topic))
	}

	// Repositories
	ownerRepo := postgres.NewOwnerRepository(db)
	facilityRepo := postgres.NewFacilityRepository(db)
	trackerRepo := postgres.NewTrackerRepository(db)

	// Services
	ownerService := owner.NewService(ownerRepo, logger.Named("owners"))
	facilityService := facility.NewService(facilityRepo)

	client := cmsclient.NewClient(cmsclient.Config{
		BaseURL:         cfg.CMS.BaseURL,
		FacilityDataset: cfg.CMS.FacilityDataset,
		OwnerDataset:    cfg.CMS.OwnerDataset,
		PageSize:        cfg.CMS.PageSize,
		Timeout:         cfg.CMS.Timeout,
	})

	syncService := cms.NewService(client, ownerService, facilityRepo, locker, logger.Named("sync"), cms.Config{
		BatchSize: cfg.Sync.BatchSize,
		LockTTL:   cfg.Sync.LockTTL,
	})
	gate := update.NewGate(trackerRepo, syncService, locker, notifier, logger.Named("update"), cfg.Sync.LockTTL)

	deps.SyncService = syncService
	deps.Gate = gate
	deps.FacilityHandler = httphandlers.NewFacilityHandler(facilityService, ownerService, logger.Named("http"))
	deps.OwnerHandler = httphandlers.NewOwnerHandler(ownerService, facilityService, syncService, cfg.Server.MaxUploadSize, logger.Named("http"))
	deps.SyncHandler = httphandlers.NewSyncHandler(syncService, gate, logger.Named("http"))

	return deps, nil
}

// Close releases database and cache connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
