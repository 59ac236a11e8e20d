package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/realtime"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	ping func(ctx context.Context) error
	hub  *realtime.Hub
}

// NewHealthHandler creates a new health handler. ping checks the database.
func NewHealthHandler(ping func(ctx context.Context) error, hub *realtime.Hub) *HealthHandler {
	return &HealthHandler{ping: ping, hub: hub}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.hub != nil {
		resp["sessions"] = h.hub.Count()
	}

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			logger.CtxError(ctx, "[Health] Database ping failed: %v", err)
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
