package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/service"
)

// AlertHandler serves alerts and the operator dashboard.
type AlertHandler struct {
	alerts    *service.AlertManager
	dashboard *service.DashboardService
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alerts *service.AlertManager, dashboard *service.DashboardService) *AlertHandler {
	return &AlertHandler{
		alerts:    alerts,
		dashboard: dashboard,
	}
}

// ResolveRequest is the body of POST /api/v1/alerts/:id/resolve.
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
}

// Dashboard handles GET /api/v1/dashboard.
func (h *AlertHandler) Dashboard(c *gin.Context) {
	d, err := h.dashboard.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListActive handles GET /api/v1/alerts.
func (h *AlertHandler) ListActive(c *gin.Context) {
	alerts, err := h.alerts.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// ListHistory handles GET /api/v1/alerts/history?limit.
func (h *AlertHandler) ListHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	alerts, err := h.alerts.ListHistory(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// Resolve handles POST /api/v1/alerts/:id/resolve. A second resolve answers
// 409 with the alert as first resolved.
func (h *AlertHandler) Resolve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), id, req.ResolvedBy)
	if err != nil {
		if alert != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "alert": alert})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
