package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/api/handler"
	"github.com/timmy/sportsync/internal/api/middleware"
	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/service"
)

// Services bundles what the HTTP layer serves. Archiver may be nil.
type Services struct {
	Tracker      *service.BatchTracker
	Availability *service.AvailabilityService
	Archiver     *service.BatchArchiver
	Sync         *service.SyncService
	Jobs         *service.JobRegistry
	Alerts       *service.AlertManager
	Dashboard    *service.DashboardService
	Hub          *realtime.Hub
	// Ping checks the database for /health.
	Ping func(ctx context.Context) error
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS))

	upgrader := realtime.NewUpgrader(func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		return origin == "" || middleware.IsOriginAllowed(origin, cfg.CORS)
	})

	healthHandler := handler.NewHealthHandler(svc.Ping, svc.Hub)
	realtimeHandler := handler.NewRealtimeHandler(svc.Hub, upgrader)
	syncHandler := handler.NewSyncHandler(svc.Tracker, svc.Availability, svc.Archiver)
	jobHandler := handler.NewJobHandler(svc.Jobs)
	alertHandler := handler.NewAlertHandler(svc.Alerts, svc.Dashboard)
	providerHandler := handler.NewProviderHandler(svc.Sync)

	r.GET("/health", healthHandler.Health)
	r.GET("/ws", realtimeHandler.Serve)

	v1 := r.Group("/api/v1")
	{
		// Sync batches and availability
		v1.GET("/sync/availability", syncHandler.Availability)
		v1.GET("/sync/batches", syncHandler.ListBatches)
		v1.GET("/sync/batches/:id", syncHandler.GetBatch)
		v1.GET("/sync/batches/:id/items", syncHandler.ListItems)
		v1.GET("/sync/batches/:id/report", syncHandler.BatchReport)

		// Jobs
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/runs", jobHandler.ListRuns)
		v1.GET("/jobs/runs/:id", jobHandler.GetRun)
		v1.POST("/jobs/:id/trigger", jobHandler.Trigger)

		// Alerts
		v1.GET("/dashboard", alertHandler.Dashboard)
		v1.GET("/alerts", alertHandler.ListActive)
		v1.GET("/alerts/history", alertHandler.ListHistory)
		v1.POST("/alerts/:id/resolve", alertHandler.Resolve)

		// Provider pass-through
		v1.GET("/provider/:entityType", providerHandler.Preview)
	}

	return r
}
