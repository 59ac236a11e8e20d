package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/sportsync/internal/api"
	"github.com/timmy/sportsync/internal/app"
	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/logger"
)

func main() {
	// Initialize logger from LOG_* environment variables
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := logger.SetComponent(context.Background(), "server")

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}

	// Runs left running by a previous process would block their jobs forever
	if _, err := a.Jobs.RecoverStaleRuns(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to recover stale runs")
	}
	if err := a.Jobs.EnsureJobs(ctx, cfg.Jobs); err != nil {
		appLogger.WithError(err).Fatal("Failed to load job definitions")
	}
	if cfg.Scheduler.Enabled {
		a.Scheduler.Start(ctx)
	}

	router := api.SetupRouter(api.Services{
		Tracker:      a.Tracker,
		Availability: a.Availability,
		Archiver:     a.Archiver,
		Sync:         a.Sync,
		Jobs:         a.Jobs,
		Alerts:       a.Alerts,
		Dashboard:    a.Dashboard,
		Hub:          a.Hub,
		Ping:         a.Ping,
	}, cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"provider": a.Gateway.Name(),
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop accepting requests first, then let in-flight runs stop between records
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Services did not stop cleanly")
	}

	appLogger.Info("Server exited")
}
