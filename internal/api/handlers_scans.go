// handlers_scans.go - Folder scan session handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/table"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000

	progressInterval = 100 * time.Millisecond
	progressTimeout  = 5 * time.Minute
)

// ScanHandlerImpl implements the ScanHandler interface
type ScanHandlerImpl struct {
	sessionMgr SessionManager
	archive    ScanArchive
}

// NewScanHandler creates a new scan handler. archive may be nil.
func NewScanHandler(sessionMgr SessionManager, archive ScanArchive) ScanHandler {
	return &ScanHandlerImpl{
		sessionMgr: sessionMgr,
		archive:    archive,
	}
}

type startScanRequest struct {
	Folder string `json:"folder"`
}

// scanStatus is a session snapshot plus its status line.
type scanStatus struct {
	*models.ScanSession
	StatusText string  `json:"statusText"`
	Progress   float64 `json:"progress"`
}

type recordsResponse struct {
	Columns []string               `json:"columns" msgpack:"columns"`
	Records []models.ImageMetadata `json:"records" msgpack:"records"`
	Rows    [][]string             `json:"rows" msgpack:"rows"`
	Offset  int                    `json:"offset" msgpack:"offset"`
	Limit   int                    `json:"limit" msgpack:"limit"`
	Total   int                    `json:"total" msgpack:"total"`
}

func sessionID(c echo.Context) (string, error) {
	id := c.Param("sessionId")
	if id == "" {
		return "", NewValidationError("sessionId")
	}
	return id, nil
}

func (h *ScanHandlerImpl) status(sess *models.ScanSession) scanStatus {
	text, _ := h.sessionMgr.StatusText(sess.ID)
	return scanStatus{ScanSession: sess, StatusText: text, Progress: sess.Progress()}
}

// HandleStartScan starts scanning a folder
func (h *ScanHandlerImpl) HandleStartScan(c echo.Context) error {
	var req startScanRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	folder := strings.TrimSpace(req.Folder)
	if folder == "" {
		return NewValidationError("folder")
	}

	sess, err := h.sessionMgr.StartScan(folder)
	if err != nil {
		return scanError(err, folder)
	}
	return c.JSON(http.StatusAccepted, h.status(sess))
}

// HandleListScans returns every retained session, newest first
func (h *ScanHandlerImpl) HandleListScans(c echo.Context) error {
	sessions := h.sessionMgr.ListSessions()
	out := make([]scanStatus, 0, len(sessions))
	for i := range sessions {
		out = append(out, h.status(&sessions[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// HandleScanStatus returns the current status of a scan session
func (h *ScanHandlerImpl) HandleScanStatus(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, h.status(sess))
}

// HandleReloadScan rescans the session's folder, replacing its records
func (h *ScanHandlerImpl) HandleReloadScan(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.ReloadScan(id)
	if err != nil {
		return scanError(err, id)
	}
	return c.JSON(http.StatusAccepted, h.status(sess))
}

// HandleDeleteScan drops a finished session and its records
func (h *ScanHandlerImpl) HandleDeleteScan(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.sessionMgr.DeleteSession(id); err != nil {
		return scanError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ScanHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleScanProgressStream streams scan progress via SSE
func (h *ScanHandlerImpl) HandleScanProgressStream(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, h.status(sess))
	if sess.Done() {
		return nil
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(progressTimeout)
	defer timeout.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}
			sendSSEData(c, h.status(sess))
			if sess.Done() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// pageParams reads offset and limit, clamping limit to maxPageSize.
func pageParams(c echo.Context) (int, int) {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return offset, limit
}

func (h *ScanHandlerImpl) records(c echo.Context) (*recordsResponse, error) {
	id, err := sessionID(c)
	if err != nil {
		return nil, err
	}
	offset, limit := pageParams(c)

	records, total, ok := h.sessionMgr.GetRecords(id, offset, limit)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	h.sessionMgr.TouchSession(id)

	return &recordsResponse{
		Columns: table.Columns,
		Records: records,
		Rows:    table.Rows(records),
		Offset:  offset,
		Limit:   limit,
		Total:   total,
	}, nil
}

// HandleScanRecords returns a page of records. Records are available while
// the scan is still running.
func (h *ScanHandlerImpl) HandleScanRecords(c echo.Context) error {
	resp, err := h.records(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleScanRecordsMsgpack returns a page of records in MessagePack format
func (h *ScanHandlerImpl) HandleScanRecordsMsgpack(c echo.Context) error {
	resp, err := h.records(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleScanCSV streams the finished table as a CSV download
func (h *ScanHandlerImpl) HandleScanCSV(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	records, err := h.sessionMgr.ExportRecords(id)
	if err != nil {
		return scanError(err, id)
	}

	name := "scan"
	if sess, ok := h.sessionMgr.GetSession(id); ok {
		name = csvName(sess.Folder)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().WriteHeader(http.StatusOK)
	return table.WriteCSV(c.Response(), records)
}

// HandleScanSummary returns the archived per-format summary of a scan
func (h *ScanHandlerImpl) HandleScanSummary(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if h.archive == nil {
		return NewServiceUnavailableError("scan archive is disabled")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if ok && !sess.Done() {
		return NewConflictError("scan in progress")
	}

	summary, err := h.archive.Summary(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to read summary", err)
	}
	if len(summary) == 0 && !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": id,
		"formats":   summary,
	})
}

// csvName derives the download file name from the scanned folder.
func csvName(folder string) string {
	base := filepath.Base(filepath.Clean(folder))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "scan"
	}
	return base + ".csv"
}

// sendSSEData sends one SSE data frame
func sendSSEData(c echo.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

// sendSSEError sends an error frame
func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
