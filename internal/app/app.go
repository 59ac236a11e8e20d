// Package app wires configuration into the running set of services shared by
// the API server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/provider/apisports"
	"github.com/timmy/sportsync/internal/provider/staging"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/repository"
	"github.com/timmy/sportsync/internal/service"
	"github.com/timmy/sportsync/internal/storage"
)

// App holds every wired service.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Hub    *realtime.Hub

	Gateway      provider.Gateway
	Tracker      *service.BatchTracker
	Archiver     *service.BatchArchiver
	Sync         *service.SyncService
	Availability *service.AvailabilityService
	Alerts       *service.AlertManager
	Dashboard    *service.DashboardService
	Jobs         *service.JobRegistry
	Scheduler    *service.Scheduler
}

// closeDB releases the connection pool of a partially built App.
var closeDB = func(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New opens the database and builds the services. It does not start the
// scheduler or touch job definitions. On error the database is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if closeErr := closeDB(db); closeErr != nil {
			logger.CtxWarn(ctx, "[App] Failed to close database after setup error: %v", closeErr)
		}
	}()

	gateway, err := NewGateway(cfg.Provider)
	if err != nil {
		return nil, err
	}

	batches := repository.NewBatchRepository(db)
	entities := repository.NewEntityRepository(db)
	jobs := repository.NewJobRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	hub := realtime.NewHub()

	var archiver *service.BatchArchiver
	if cfg.Archive.Enabled {
		store, err := storage.NewObjectStore(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		archiver = service.NewBatchArchiver(store, batches, cfg.Archive.Prefix)
		logger.CtxInfo(ctx, "[App] Batch reports archived under %q", cfg.Archive.Prefix)
	}

	tracker := service.NewBatchTracker(batches)
	syncSvc := service.NewSyncService(gateway, entities, tracker, archiver, hub, cfg.Sync)
	alerts := service.NewAlertManager(alertRepo, jobs, batches, hub, cfg.Alerts)
	registry := service.NewJobRegistry(jobs, syncSvc, alerts, hub)

	return &App{
		Config:       cfg,
		DB:           db,
		Hub:          hub,
		Gateway:      gateway,
		Tracker:      tracker,
		Archiver:     archiver,
		Sync:         syncSvc,
		Availability: service.NewAvailabilityService(entities, batches, cfg.Availability),
		Alerts:       alerts,
		Dashboard:    service.NewDashboardService(alertRepo, jobs, batches),
		Jobs:         registry,
		Scheduler:    service.NewScheduler(cfg.Scheduler, registry),
	}, nil
}

// NewGateway builds the provider gateway selected by cfg.Type.
func NewGateway(cfg config.ProviderConfig) (provider.Gateway, error) {
	switch cfg.Type {
	case "staging":
		logger.Info("[App] Using staged provider data from %s", cfg.StagingPath)
		return staging.NewGateway(cfg.StagingPath), nil
	case "apisports", "":
		if cfg.APIKey == "" {
			logger.Warn("[App] PROVIDER_API_KEY is not set; provider calls will be rejected")
		}
		return apisports.NewClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close stops background work and releases the database.
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var firstErr error
	if err := a.Jobs.Shutdown(ctx); err != nil {
		firstErr = err
	}
	a.Hub.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
