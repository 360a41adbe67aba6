// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/image-inspector/backend/internal/archive"
	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/session"
)

// ScanHandler handles folder scan sessions
type ScanHandler interface {
	HandleStartScan(c echo.Context) error
	HandleListScans(c echo.Context) error
	HandleScanStatus(c echo.Context) error
	HandleReloadScan(c echo.Context) error
	HandleDeleteScan(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleScanProgressStream(c echo.Context) error
	HandleScanRecords(c echo.Context) error
	HandleScanRecordsMsgpack(c echo.Context) error
	HandleScanCSV(c echo.Context) error
	HandleScanSummary(c echo.Context) error
}

// ExportHandler handles saved CSV exports
type ExportHandler interface {
	HandleExportScan(c echo.Context) error
	HandleListExports(c echo.Context) error
	HandleGetExport(c echo.Context) error
	HandleDownloadExport(c echo.Context) error
	HandleDeleteExport(c echo.Context) error
}

// HistoryHandler serves archived scans
type HistoryHandler interface {
	HandleHistory(c echo.Context) error
}

// LiveHandler pushes scan events over a websocket
type LiveHandler interface {
	HandleScanSocket(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartScan(folder string) (*models.ScanSession, error)
	ReloadScan(id string) (*models.ScanSession, error)
	DeleteSession(id string) error
	GetSession(id string) (*models.ScanSession, bool)
	ListSessions() []models.ScanSession
	TouchSession(id string) bool
	StatusText(id string) (string, bool)
	SetStatusText(id, text string) bool
	GetRecords(id string, offset, limit int) ([]models.ImageMetadata, int, bool)
	ExportRecords(id string) ([]models.ImageMetadata, error)
	Subscribe(id string) (<-chan session.Event, func(), error)
}

// ScanArchive is the read side of the scan archive.
type ScanArchive interface {
	ListScans(ctx context.Context, limit int) ([]archive.ScanRecord, error)
	Summary(ctx context.Context, sessionID string) ([]archive.FormatSummary, error)
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ ScanArchive    = (*archive.Archive)(nil)
)
