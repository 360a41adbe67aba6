// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	Archive    ScanArchive // nil when the archive is disabled
	Logger     *zap.Logger
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Scan    ScanHandler
	Export  ExportHandler
	History HistoryHandler
	Live    LiveHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SessionMgr, deps.Archive != nil),
		Scan:    NewScanHandler(deps.SessionMgr, deps.Archive),
		Export:  NewExportHandler(deps.Store, deps.SessionMgr, log),
		History: NewHistoryHandler(deps.Archive),
		Live:    NewLiveHandler(deps.SessionMgr, log),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Scan sessions
	scanGroup := apiGroup.Group("/scans")
	scanGroup.POST("", handlers.Scan.HandleStartScan)
	scanGroup.GET("", handlers.Scan.HandleListScans)
	scanGroup.GET("/:sessionId/status", handlers.Scan.HandleScanStatus)
	scanGroup.POST("/:sessionId/reload", handlers.Scan.HandleReloadScan)
	scanGroup.DELETE("/:sessionId", handlers.Scan.HandleDeleteScan)
	scanGroup.POST("/:sessionId/keepalive", handlers.Scan.HandleSessionKeepAlive)
	scanGroup.GET("/:sessionId/progress", handlers.Scan.HandleScanProgressStream)
	scanGroup.GET("/:sessionId/records", handlers.Scan.HandleScanRecords)
	scanGroup.GET("/:sessionId/records/msgpack", handlers.Scan.HandleScanRecordsMsgpack)
	scanGroup.GET("/:sessionId/csv", handlers.Scan.HandleScanCSV)
	scanGroup.GET("/:sessionId/summary", handlers.Scan.HandleScanSummary)
	scanGroup.POST("/:sessionId/export", handlers.Export.HandleExportScan)
	scanGroup.GET("/:sessionId/ws", handlers.Live.HandleScanSocket)

	apiGroup.GET("/history", handlers.History.HandleHistory)

	// Saved exports
	exportGroup := apiGroup.Group("/exports")
	exportGroup.GET("", handlers.Export.HandleListExports)
	exportGroup.GET("/:id", handlers.Export.HandleGetExport)
	exportGroup.GET("/:id/download", handlers.Export.HandleDownloadExport)
	exportGroup.DELETE("/:id", handlers.Export.HandleDeleteExport)
}

// MiddlewareConfig selects the optional middleware.
type MiddlewareConfig struct {
	RequestLogging   bool
	Timeout          time.Duration
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	CORS             bool
	AllowOrigins     []string
}

// streaming reports requests that hold the connection open.
func streaming(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/progress") ||
		strings.HasSuffix(path, "/ws") ||
		c.Request().Header.Get(echo.HeaderAccept) == "text/event-stream"
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("handler panic",
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.Timeout,
			Skipper: func(c echo.Context) bool {
				return streaming(c) || strings.HasSuffix(c.Request().URL.Path, "/csv")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level:   cfg.CompressionLevel,
			Skipper: streaming,
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.CORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// SplitOrigins parses a comma-separated origin list.
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
