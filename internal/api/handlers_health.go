// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	sessionMgr SessionManager
	archive    bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, sessionMgr SessionManager, archive bool) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		sessionMgr: sessionMgr,
		archive:    archive,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	sessions := 0
	if h.sessionMgr != nil {
		sessions = len(h.sessionMgr.ListSessions())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"sessions": sessions,
		"archive":  h.archive,
	})
}
