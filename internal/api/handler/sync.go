package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/service"
)

// SyncHandler serves batches, batch items, archived reports, and availability.
type SyncHandler struct {
	tracker  *service.BatchTracker
	avail    *service.AvailabilityService
	archiver *service.BatchArchiver
}

// NewSyncHandler creates a new sync handler. archiver may be nil when
// archiving is disabled.
func NewSyncHandler(tracker *service.BatchTracker, avail *service.AvailabilityService, archiver *service.BatchArchiver) *SyncHandler {
	return &SyncHandler{
		tracker:  tracker,
		avail:    avail,
		archiver: archiver,
	}
}

// Availability handles GET /api/v1/sync/availability.
// Query: includeHistorical, skipFixtureCheck, scope (comma-separated entity types).
func (h *SyncHandler) Availability(c *gin.Context) {
	includeHistorical, ok := queryBool(c, "includeHistorical")
	if !ok {
		return
	}
	skipFixtureCheck, ok := queryBool(c, "skipFixtureCheck")
	if !ok {
		return
	}

	var scope []domain.EntityType
	for _, raw := range strings.Split(c.Query("scope"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			scope = append(scope, domain.EntityType(raw))
		}
	}

	snapshot, err := h.avail.GetAvailability(c.Request.Context(), scope, domain.AvailabilityOptions{
		IncludeHistorical: includeHistorical,
		SkipFixtureCheck:  skipFixtureCheck,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ListBatches handles GET /api/v1/sync/batches?name&limit.
func (h *SyncHandler) ListBatches(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	batches, err := h.tracker.ListBatches(c.Request.Context(), c.Query("name"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]domain.BatchWithStatus, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.WithStatus())
	}
	c.JSON(http.StatusOK, gin.H{
		"batches": out,
		"total":   len(out),
	})
}

// GetBatch handles GET /api/v1/sync/batches/:id.
func (h *SyncHandler) GetBatch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	batch, err := h.tracker.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch.WithStatus())
}

// ListItems handles GET /api/v1/sync/batches/:id/items?page&perPage&status&action.
func (h *SyncHandler) ListItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	perPage, ok := queryInt(c, "perPage")
	if !ok {
		return
	}

	result, err := h.tracker.ListItems(c.Request.Context(), service.ItemQuery{
		BatchID: id,
		Page:    page,
		PerPage: perPage,
		Status:  domain.ItemStatus(c.Query("status")),
		Action:  domain.ItemAction(c.Query("action")),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BatchReport handles GET /api/v1/sync/batches/:id/report.
func (h *SyncHandler) BatchReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if h.archiver == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report archiving is disabled"})
		return
	}

	url, err := h.archiver.ReportURL(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": id,
		"url":      url,
	})
}
