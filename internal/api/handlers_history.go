// handlers_history.go - Archived scan history
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	archive ScanArchive
}

// NewHistoryHandler creates a history handler. archive may be nil.
func NewHistoryHandler(archive ScanArchive) HistoryHandler {
	return &HistoryHandlerImpl{archive: archive}
}

// HandleHistory lists archived scans, newest first
func (h *HistoryHandlerImpl) HandleHistory(c echo.Context) error {
	if h.archive == nil {
		return NewServiceUnavailableError("scan archive is disabled")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	scans, err := h.archive.ListScans(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list scan history", err)
	}
	return c.JSON(http.StatusOK, scans)
}
