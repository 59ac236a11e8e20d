package handler

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsAny(err,
		domain.ErrBatchNotFound, domain.ErrItemNotFound, domain.ErrJobNotFound,
		domain.ErrRunNotFound, domain.ErrAlertNotFound, domain.ErrReportNotArchived):
		return http.StatusNotFound
	case errors.IsAny(err,
		domain.ErrJobAlreadyRunning, domain.ErrAlertAlreadyResolved,
		domain.ErrBatchClosed, domain.ErrJobDisabled):
		return http.StatusConflict
	case errors.IsAny(err,
		domain.ErrInvalidArgument, domain.ErrUnknownEntityType, domain.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.IsAny(err, domain.ErrProviderAuth, domain.ErrProviderRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": ...}. Server and provider errors are
// logged in full; the response carries only a fixed message for them.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.CtxError(c.Request.Context(), "Request failed: path=%s, status=%d, error=%+v", c.FullPath(), status, err)
	c.JSON(status, gin.H{"error": publicMessage(err)})
}

// publicMessage is the client-facing text for 5xx errors. Provider error text
// can carry upstream messages and internal addresses, so it is never echoed.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderAuth):
		return domain.ErrProviderAuth.Error()
	case errors.Is(err, domain.ErrProviderRejected):
		return domain.ErrProviderRejected.Error()
	case errors.Is(err, domain.ErrProviderUnavailable):
		return domain.ErrProviderUnavailable.Error()
	default:
		return "internal error"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name+": "+c.Param(name))
		return 0, false
	}
	return uint(id), true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name+": "+raw)
		return 0, false
	}
	return v, true
}

// queryBool parses an optional boolean query parameter; a bare "?flag" is true.
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return false, true
	}
	if raw == "" {
		return true, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "invalid "+name+": "+raw)
		return false, false
	}
	return v, true
}
