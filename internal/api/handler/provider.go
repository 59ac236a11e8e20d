package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/service"
)

// ProviderHandler passes normalized provider records through without storing them.
type ProviderHandler struct {
	sync *service.SyncService
}

// NewProviderHandler creates a new provider handler.
func NewProviderHandler(sync *service.SyncService) *ProviderHandler {
	return &ProviderHandler{sync: sync}
}

// Preview handles GET /api/v1/provider/:entityType. Query parameters are
// forwarded to the provider as-is.
func (h *ProviderHandler) Preview(c *gin.Context) {
	entityType, err := domain.ParseEntityType(c.Param("entityType"))
	if err != nil {
		writeError(c, err)
		return
	}

	params := provider.Params{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	records, err := h.sync.Preview(c.Request.Context(), entityType, params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entity_type": entityType,
		"records":     records,
		"total":       len(records),
	})
}
