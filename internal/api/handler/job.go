package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/service"
)

// JobHandler serves job definitions, run history, and manual triggers.
type JobHandler struct {
	registry *service.JobRegistry
}

// NewJobHandler creates a new job handler.
func NewJobHandler(registry *service.JobRegistry) *JobHandler {
	return &JobHandler{registry: registry}
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.registry.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// ListRuns handles GET /api/v1/jobs/runs?jobId&status&page&perPage.
func (h *JobHandler) ListRuns(c *gin.Context) {
	jobID, ok := queryInt(c, "jobId")
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
	if jobID < 0 {
		badRequest(c, "invalid jobId")
		return
	}

	result, err := h.registry.ListRuns(c.Request.Context(), service.RunQuery{
		JobID:   uint(jobID),
		Status:  domain.RunStatus(c.Query("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRun handles GET /api/v1/jobs/runs/:id.
func (h *JobHandler) GetRun(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	run, err := h.registry.GetRun(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// Trigger handles POST /api/v1/jobs/:id/trigger. The run continues after the
// response; 409 means a run of this job is still in progress.
func (h *JobHandler) Trigger(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := logger.SetJobID(c.Request.Context(), id)

	run, err := h.registry.TriggerRun(ctx, id, domain.RunTriggerManual)
	if err != nil {
		logger.CtxWarn(ctx, "Trigger rejected: client_ip=%s, error=%v", c.ClientIP(), err)
		writeError(c, err)
		return
	}

	logger.CtxInfo(ctx, "Run %d triggered: client_ip=%s", run.ID, c.ClientIP())
	c.JSON(http.StatusAccepted, run)
}
