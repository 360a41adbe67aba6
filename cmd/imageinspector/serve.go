package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/image-inspector/backend/internal/api"
	"github.com/image-inspector/backend/internal/archive"
	"github.com/image-inspector/backend/internal/config"
	"github.com/image-inspector/backend/internal/logger"
	"github.com/image-inspector/backend/internal/session"
	"github.com/image-inspector/backend/internal/storage"
	"github.com/image-inspector/backend/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the embedded table view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := opts.serverConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.New(opts.level(cfg))
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, log)
		},
	}
}

// openExportStore opens the local export store, wrapped with the S3
// mirror when a bucket is configured.
func openExportStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (storage.Store, func() error, error) {
	local, err := storage.NewLocalStore(cfg.Storage.ExportsDirectory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if !cfg.Export.S3.Enabled() {
		return local, local.Close, nil
	}

	s3 := cfg.Export.S3
	mirror, err := storage.NewS3Mirror(ctx, storage.S3Options{
		Bucket:          s3.Bucket,
		Region:          s3.Region,
		Endpoint:        s3.Endpoint,
		AccessKeyID:     s3.AccessKeyID,
		SecretAccessKey: s3.SecretAccessKey,
		UsePathStyle:    s3.UsePathStyle,
	}, log.Named("s3"))
	if err != nil {
		_ = local.Close()
		return nil, nil, fmt.Errorf("failed to initialize S3 mirror: %w", err)
	}
	log.Info("mirroring exports to S3", zap.String("bucket", s3.Bucket), zap.String("prefix", s3.Prefix))
	return storage.NewMirroredStore(local, mirror, s3.Prefix, log.Named("mirror")), local.Close, nil
}

func runServer(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	store, closeStore, err := openExportStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("failed to close export store", zap.Error(err))
		}
	}()

	// Interfaces stay nil when the archive is disabled.
	var (
		archiver    session.Archiver
		scanArchive api.ScanArchive
	)
	if cfg.Storage.EnableArchive {
		arch, err := archive.Open(cfg.Storage.ArchivePath, log.Named("archive"))
		if err != nil {
			return fmt.Errorf("failed to open scan archive: %w", err)
		}
		defer func() {
			if err := arch.Close(); err != nil {
				log.Error("failed to close scan archive", zap.Error(err))
			}
		}()
		archiver, scanArchive = arch, arch
	}

	sessionMgr := session.NewManager(session.Options{
		Extensions:         cfg.Scan.Extensions,
		BatchSize:          cfg.Scan.BatchSize,
		MaxConcurrentScans: cfg.Processing.MaxConcurrentScans,
		Archive:            archiver,
		Logger:             log.Named("session"),
	})

	api.ShowErrorDetails = Version == "dev"

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging:   cfg.Logging.EnableRequestLogging,
		Timeout:          time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Compression:      cfg.Processing.EnableCompression,
		CompressionLevel: cfg.Processing.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
		CORS:             cfg.Server.EnableCORS,
		AllowOrigins:     api.SplitOrigins(cfg.Server.AllowOrigins),
	}, log.Named("http"))

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:      store,
		SessionMgr: sessionMgr,
		Archive:    scanArchive,
		Logger:     log.Named("api"),
		Version:    Version,
	}))

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			return fmt.Errorf("failed to register static routes: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("version", Version),
			zap.String("data", cfg.GetDataDir()),
			zap.Bool("archive", scanArchive != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sessionMgr.RunCleanup(ctx, cfg.CleanupInterval(), cfg.SessionTimeout())
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
