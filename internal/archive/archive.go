// Package archive keeps completed scans in a DuckDB file so that scan
// history and per-format summaries survive restarts.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/models"
)

// Archive is a DuckDB-backed store of completed scans.
type Archive struct {
	db     *sql.DB
	dbPath string
	log    *zap.Logger

	// DuckDB allows one writer per database.
	writeMu sync.Mutex

	// appendFn writes the records of a scan; nil means appendRecords.
	appendFn func(ctx context.Context, s models.ScanSession, records []models.ImageMetadata) error
}

// ScanRecord is one row of scan history.
type ScanRecord struct {
	SessionID        string     `json:"sessionId"`
	Reloads          int        `json:"reloads"`
	Folder           string     `json:"folder"`
	FileCount        int        `json:"fileCount"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// FormatSummary aggregates the files of one format within a scan.
type FormatSummary struct {
	Format     models.ImageFormat `json:"format"`
	Files      int                `json:"files"`
	TotalBytes int64              `json:"totalBytes"`
	AvgDepth   float64            `json:"avgDepth"`
	Unreadable int                `json:"unreadable"`
}

var schema = []string{`
	CREATE TABLE IF NOT EXISTS scans (
		session_id    VARCHAR NOT NULL,
		reloads       INTEGER NOT NULL,
		folder        VARCHAR NOT NULL,
		file_count    INTEGER NOT NULL,
		processing_ms BIGINT NOT NULL,
		started_at    TIMESTAMP NOT NULL,
		completed_at  TIMESTAMP
	)`, `
	CREATE TABLE IF NOT EXISTS records (
		session_id  VARCHAR NOT NULL,
		reloads     INTEGER NOT NULL,
		seq         INTEGER NOT NULL,
		file_name   VARCHAR NOT NULL,
		size_bytes  UBIGINT NOT NULL,
		width       INTEGER,
		height      INTEGER,
		dpi_x       INTEGER,
		dpi_y       INTEGER,
		depth       INTEGER NOT NULL,
		format      VARCHAR NOT NULL,
		compression VARCHAR NOT NULL
	)`,
}

// Open opens or creates the archive at dbPath.
func Open(dbPath string, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	log.Info("archive opened", zap.String("path", dbPath))
	return &Archive{db: db, dbPath: dbPath, log: log}, nil
}

// SaveScan stores a finished scan and its records, replacing any earlier
// copy of the same session and reload. The scans row is written only after
// every record is stored, so a failed save leaves no partial scan behind.
func (a *Archive) SaveScan(ctx context.Context, s models.ScanSession, records []models.ImageMetadata) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	start := time.Now()

	if err := a.clearScan(ctx, s); err != nil {
		return err
	}

	appendFn := a.appendFn
	if appendFn == nil {
		appendFn = a.appendRecords
	}
	if err := appendFn(ctx, s, records); err != nil {
		a.discardRecords(s)
		return err
	}

	var completed any
	if s.CompletedAt != nil {
		completed = *s.CompletedAt
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO scans (session_id, reloads, folder, file_count, processing_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Reloads, s.Folder, len(records), s.ProcessingTimeMs, s.StartedAt, completed)
	if err != nil {
		a.discardRecords(s)
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	a.log.Debug("scan archived",
		zap.String("session", s.ID),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// clearScan removes an earlier copy of the session and reload.
func (a *Archive) clearScan(ctx context.Context, s models.ScanSession) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM scans WHERE session_id = ? AND reloads = ?",
		"DELETE FROM records WHERE session_id = ? AND reloads = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, s.ID, s.Reloads); err != nil {
			return fmt.Errorf("failed to clear previous scan: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// discardRecords drops whatever a failed save managed to append.
func (a *Archive) discardRecords(s models.ScanSession) {
	_, err := a.db.ExecContext(context.Background(),
		"DELETE FROM records WHERE session_id = ? AND reloads = ?", s.ID, s.Reloads)
	if err != nil {
		a.log.Warn("failed to discard partial scan records",
			zap.String("session", s.ID),
			zap.Int("reloads", s.Reloads),
			zap.Error(err))
	}
}

// appendRecords writes records with the native Appender API.
func (a *Archive) appendRecords(ctx context.Context, s models.ScanSession, records []models.ImageMetadata) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, rec := range records {
			var width, height, dpiX, dpiY driver.Value
			if rec.Dimensions != nil {
				width, height = int32(rec.Dimensions.Width), int32(rec.Dimensions.Height)
			}
			if rec.DPI != nil {
				dpiX, dpiY = int32(rec.DPI.X), int32(rec.DPI.Y)
			}
			err := appender.AppendRow(
				s.ID,
				int32(s.Reloads),
				int32(i),
				rec.FileName,
				rec.FileSizeBytes,
				width,
				height,
				dpiX,
				dpiY,
				int32(rec.Depth),
				string(rec.Format),
				rec.Compression,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// ListScans returns the most recent scans, newest first.
func (a *Archive) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, reloads, folder, file_count, processing_ms, started_at, completed_at
		FROM scans
		ORDER BY started_at DESC, reloads DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := make([]ScanRecord, 0, limit)
	for rows.Next() {
		var r ScanRecord
		var reloads, fileCount int32
		var completed sql.NullTime
		if err := rows.Scan(&r.SessionID, &reloads, &r.Folder, &fileCount, &r.ProcessingTimeMs, &r.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Reloads = int(reloads)
		r.FileCount = int(fileCount)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		scans = append(scans, r)
	}
	return scans, rows.Err()
}

// Summary aggregates the latest archived scan of a session by format.
// It returns an empty slice when the session has not been archived.
func (a *Archive) Summary(ctx context.Context, sessionID string) ([]FormatSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT format,
		       COUNT(*),
		       CAST(COALESCE(SUM(size_bytes), 0) AS BIGINT),
		       COALESCE(AVG(depth), 0),
		       COUNT(*) FILTER (WHERE width IS NULL)
		FROM records
		WHERE session_id = ?
		  AND reloads = (SELECT MAX(reloads) FROM scans WHERE session_id = ?)
		GROUP BY format
		ORDER BY COUNT(*) DESC, format`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	summary := []FormatSummary{}
	for rows.Next() {
		var s FormatSummary
		var format string
		var files, unreadable int64
		if err := rows.Scan(&format, &files, &s.TotalBytes, &s.AvgDepth, &unreadable); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.Format = models.ImageFormat(format)
		s.Files = int(files)
		s.Unreadable = int(unreadable)
		summary = append(summary, s)
	}
	return summary, rows.Err()
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.dbPath
}

// Close closes the database. The file is kept.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
