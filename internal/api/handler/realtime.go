package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/realtime"
)

// RealtimeHandler upgrades operator connections onto the event hub.
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
}

// NewRealtimeHandler creates a new realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, upgrader *websocket.Upgrader) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, upgrader: upgrader}
}

// Serve handles GET /ws and blocks for the life of the connection.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	if err := realtime.Serve(ctx, h.hub, h.upgrader, c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error.
		logger.CtxWarn(ctx, "Websocket upgrade failed: client_ip=%s, error=%v", c.ClientIP(), err)
	}
}
