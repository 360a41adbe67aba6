package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]ImageFormat{
		"jpeg": FormatJPEG,
		"JPG":  FormatJPEG,
		"png":  FormatPNG,
		"gif":  FormatGIF,
		"bmp":  FormatBMP,
		"tif":  FormatTIFF,
		"TIFF": FormatTIFF,
		"pcx":  FormatPCX,
		"webp": FormatUnknown,
		"":     FormatUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseFormat(in), in)
	}
}

func TestImageFormat_Label(t *testing.T) {
	assert.Equal(t, "PNG", FormatPNG.Label())
	assert.Equal(t, "Unknown", FormatUnknown.Label())
	assert.Equal(t, "Unknown", ImageFormat("").Label())
}

func TestNewDimensionsAndResolution(t *testing.T) {
	assert.Equal(t, &Dimensions{Width: 3, Height: 4}, NewDimensions(3, 4))
	assert.Nil(t, NewDimensions(0, 4))
	assert.Nil(t, NewDimensions(3, -1))

	assert.Equal(t, &Resolution{X: 72, Y: 96}, NewResolution(72, 96))
	assert.Nil(t, NewResolution(72, 0))
}

func TestImageMetadata_Normalize(t *testing.T) {
	m := ImageMetadata{
		FileName:   "x.png",
		Dimensions: &Dimensions{Width: 0, Height: 10},
		DPI:        &Resolution{X: 300, Y: 300},
		Depth:      -8,
	}.Normalize()

	assert.Equal(t, FormatUnknown, m.Format)
	assert.Nil(t, m.Dimensions)
	assert.Equal(t, &Resolution{X: 300, Y: 300}, m.DPI)
	assert.Zero(t, m.Depth)

	fresh := NewImageMetadata("y.bmp", 42)
	assert.Equal(t, FormatUnknown, fresh.Format)
	assert.Equal(t, uint64(42), fresh.FileSizeBytes)
}

func TestScanSession_Progress(t *testing.T) {
	s := NewScanSession("id", "/images")
	assert.Equal(t, SessionStatusPending, s.Status)
	assert.False(t, s.Done())
	assert.Zero(t, s.Progress())

	s.Status = SessionStatusScanning
	s.FileCount = 4
	s.Loaded = 1
	assert.Equal(t, 25.0, s.Progress())

	s.Status = SessionStatusComplete
	s.Loaded = 4
	assert.True(t, s.Done())
	assert.Equal(t, 100.0, s.Progress())

	empty := &ScanSession{Status: SessionStatusComplete, StartedAt: time.Now()}
	assert.Equal(t, 100.0, empty.Progress())

	failed := &ScanSession{Status: SessionStatusError}
	assert.True(t, failed.Done())
}
