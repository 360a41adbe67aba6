package table

import (
	"fmt"
	"strconv"

	"github.com/image-inspector/backend/internal/models"
)

// Column labels, in display order.
const (
	ColumnFileName    = "File name"
	ColumnFileSize    = "File size"
	ColumnDimensions  = "Size in pixels"
	ColumnResolution  = "Resolution (dpi)"
	ColumnColorDepth  = "Color depth"
	ColumnFormat      = "Format"
	ColumnCompression = "Compression"
)

// Columns is the header row shared by the table view and CSV export.
var Columns = []string{
	ColumnFileName,
	ColumnFileSize,
	ColumnDimensions,
	ColumnResolution,
	ColumnColorDepth,
	ColumnFormat,
	ColumnCompression,
}

// NotAvailable is rendered for any field that could not be determined.
const NotAvailable = "N/A"

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// HumanSize renders a byte count scaled by 1024 with two decimals.
// GB is the largest unit.
func HumanSize(bytes uint64) string {
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(sizeUnits)-1 {
		size /= 1024
		i++
	}
	return strconv.FormatFloat(size, 'f', 2, 64) + " " + sizeUnits[i]
}

// FormatDimensions renders "W x H".
func FormatDimensions(d *models.Dimensions) string {
	if d == nil || d.Width <= 0 || d.Height <= 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%d x %d", d.Width, d.Height)
}

// FormatDPI renders "X x Y", or N/A when either axis is not positive.
func FormatDPI(r *models.Resolution) string {
	if r == nil || r.X <= 0 || r.Y <= 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%d x %d", r.X, r.Y)
}

var depthBuckets = map[int]string{
	1:  "1 bpp (Black & White)",
	8:  "8 bpp (256 colors)",
	24: "24 bpp (RGB)",
	32: "32 bpp (RGB + Alpha)",
}

// FormatDepth renders a bits-per-pixel value.
func FormatDepth(depth int) string {
	if depth <= 0 {
		return NotAvailable
	}
	if label, ok := depthBuckets[depth]; ok {
		return label
	}
	return fmt.Sprintf("%d bpp", depth)
}

// Row renders one record in column order.
func Row(m models.ImageMetadata) []string {
	return []string{
		m.FileName,
		HumanSize(m.FileSizeBytes),
		FormatDimensions(m.Dimensions),
		FormatDPI(m.DPI),
		FormatDepth(m.Depth),
		m.Format.Label(),
		m.Compression,
	}
}

// Rows renders every record.
func Rows(records []models.ImageMetadata) [][]string {
	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, Row(m))
	}
	return rows
}
