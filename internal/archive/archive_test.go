package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-inspector/backend/internal/models"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive", "scans.duckdb"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testScan(id string, reloads int, started time.Time) models.ScanSession {
	completed := started.Add(time.Second)
	return models.ScanSession{
		ID:               id,
		Folder:           "/photos",
		Status:           models.SessionStatusComplete,
		ProcessingTimeMs: 1000,
		StartedAt:        started,
		CompletedAt:      &completed,
		Reloads:          reloads,
	}
}

func testRecords() []models.ImageMetadata {
	png := models.ImageMetadata{
		FileName:      "a.png",
		FileSizeBytes: 1000,
		Dimensions:    &models.Dimensions{Width: 10, Height: 10},
		DPI:           &models.Resolution{X: 72, Y: 72},
		Depth:         24,
		Format:        models.FormatPNG,
		Compression:   "Lossless",
	}
	png2 := png
	png2.FileName = "b.png"
	png2.FileSizeBytes = 3000
	png2.Depth = 32

	pcx := models.NewImageMetadata("x.pcx", 50)
	pcx.Format = models.FormatPCX
	pcx.Compression = "RLE (Lossless)"

	return []models.ImageMetadata{png, png2, pcx}
}

func TestArchive_SaveAndSummary(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.SaveScan(ctx, testScan("s1", 0, time.Now()), testRecords()))

	summary, err := a.Summary(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, models.FormatPNG, summary[0].Format)
	assert.Equal(t, 2, summary[0].Files)
	assert.Equal(t, int64(4000), summary[0].TotalBytes)
	assert.InDelta(t, 28.0, summary[0].AvgDepth, 0.001)
	assert.Zero(t, summary[0].Unreadable)

	assert.Equal(t, models.FormatPCX, summary[1].Format)
	assert.Equal(t, 1, summary[1].Files)
	assert.Equal(t, 1, summary[1].Unreadable)
}

func TestArchive_SummaryUsesLatestReload(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, a.SaveScan(ctx, testScan("s1", 0, now), testRecords()))
	require.NoError(t, a.SaveScan(ctx, testScan("s1", 1, now.Add(time.Minute)), testRecords()[:1]))

	summary, err := a.Summary(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Files)
}

func TestArchive_SaveReplacesSameReload(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	scan := testScan("s1", 0, time.Now())

	require.NoError(t, a.SaveScan(ctx, scan, testRecords()))
	require.NoError(t, a.SaveScan(ctx, scan, testRecords()))

	scans, err := a.ListScans(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, scans, 1)

	summary, err := a.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary[0].Files)
}

func TestArchive_FailedSaveLeavesNoPartialScan(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, a.SaveScan(ctx, testScan("s1", 0, now), testRecords()))

	errDisk := errors.New("disk full")
	a.appendFn = func(ctx context.Context, s models.ScanSession, records []models.ImageMetadata) error {
		if err := a.appendRecords(ctx, s, records[:2]); err != nil {
			return err
		}
		return errDisk
	}
	err := a.SaveScan(ctx, testScan("s1", 1, now.Add(time.Minute)), testRecords())
	assert.ErrorIs(t, err, errDisk)

	scans, err := a.ListScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, 0, scans[0].Reloads)

	var orphans int
	require.NoError(t, a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE session_id = 's1' AND reloads = 1").Scan(&orphans))
	assert.Zero(t, orphans)

	summary, err := a.Summary(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, 2, summary[0].Files)

	a.appendFn = nil
	require.NoError(t, a.SaveScan(ctx, testScan("s1", 1, now.Add(time.Minute)), testRecords()[:1]))
	summary, err = a.Summary(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Files)
}

func TestArchive_ListScans(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	require.NoError(t, a.SaveScan(ctx, testScan("old", 0, now.Add(-time.Hour)), testRecords()))
	require.NoError(t, a.SaveScan(ctx, testScan("new", 0, now), nil))

	scans, err := a.ListScans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "new", scans[0].SessionID)
	assert.Zero(t, scans[0].FileCount)
	assert.Equal(t, "old", scans[1].SessionID)
	assert.Equal(t, 3, scans[1].FileCount)
	assert.Equal(t, "/photos", scans[1].Folder)
	require.NotNil(t, scans[1].CompletedAt)

	limited, err := a.ListScans(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestArchive_SummaryUnknownSession(t *testing.T) {
	a := openTestArchive(t)
	summary, err := a.Summary(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.duckdb")
	a, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, a.SaveScan(context.Background(), testScan("s1", 0, time.Now()), testRecords()))
	require.NoError(t, a.Close())

	b, err := Open(path, nil)
	require.NoError(t, err)
	defer b.Close()

	scans, err := b.ListScans(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
	assert.Equal(t, path, b.Path())
}
