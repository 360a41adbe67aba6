// handlers_exports.go - CSV export handlers
package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/logger"
	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/storage"
	"github.com/image-inspector/backend/internal/table"
)

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	log        *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(store storage.Store, sessionMgr SessionManager, log *zap.Logger) ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		log:        log,
	}
}

type exportRequest struct {
	Name string `json:"name"`
}

type exportResponse struct {
	File       *models.FileInfo `json:"file"`
	Path       string           `json:"path"`
	StatusText string           `json:"statusText"`
}

func exportID(c echo.Context) (string, error) {
	id := c.Param("id")
	if id == "" {
		return "", NewValidationError("id")
	}
	return id, nil
}

// HandleExportScan saves the finished table of a session as a CSV export
func (h *ExportHandlerImpl) HandleExportScan(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	var req exportRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
	}

	records, err := h.sessionMgr.ExportRecords(id)
	if err != nil {
		return scanError(err, id)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "scan"
		if sess, ok := h.sessionMgr.GetSession(id); ok {
			name = csvName(sess.Folder)
		}
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, records); err != nil {
		return NewInternalError("failed to write CSV", err)
	}

	info, err := h.store.Save(name, id, len(records), &buf)
	if err != nil {
		return NewInternalError("failed to save export", err)
	}
	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return NewInternalError("failed to locate export", err)
	}

	status := table.SavedStatus(path)
	h.sessionMgr.SetStatusText(id, status)
	h.log.Info("scan exported",
		zap.String("session", logger.ShortID(id)),
		zap.String("export", info.ID),
		zap.Int("rows", len(records)))

	return c.JSON(http.StatusCreated, exportResponse{
		File:       info,
		Path:       path,
		StatusText: status,
	})
}

// HandleListExports returns recent exports, newest first
func (h *ExportHandlerImpl) HandleListExports(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list exports", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetExport returns export metadata
func (h *ExportHandlerImpl) HandleGetExport(c echo.Context) error {
	id, err := exportID(c)
	if err != nil {
		return err
	}

	info, err := h.store.Get(id)
	if err != nil {
		return scanError(err, id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDownloadExport sends the saved CSV file
func (h *ExportHandlerImpl) HandleDownloadExport(c echo.Context) error {
	id, err := exportID(c)
	if err != nil {
		return err
	}

	info, err := h.store.Get(id)
	if err != nil {
		return scanError(err, id)
	}
	path, err := h.store.GetFilePath(id)
	if err != nil {
		return scanError(err, id)
	}
	return c.Attachment(path, info.Name)
}

// HandleDeleteExport removes an export
func (h *ExportHandlerImpl) HandleDeleteExport(c echo.Context) error {
	id, err := exportID(c)
	if err != nil {
		return err
	}

	if err := h.store.Delete(id); err != nil {
		return scanError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}
