package parser

import (
	"github.com/image-inspector/backend/internal/models"
)

// Parser extracts header metadata for one or more image formats.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Formats lists the format tags this parser is registered for.
	Formats() []models.ImageFormat
	// Parse reads what it can from the file. It never fails: anything it
	// cannot determine is left at its zero value.
	Parse(filePath string, format models.ImageFormat) Result
}

// Result holds the fields a parser recovered from a file.
type Result struct {
	Dimensions  *models.Dimensions
	DPI         *models.Resolution
	Depth       int
	Compression string
}

// Apply copies the parsed fields onto a record.
func (r Result) Apply(m *models.ImageMetadata) {
	m.Dimensions = r.Dimensions
	m.DPI = r.DPI
	m.Depth = r.Depth
	m.Compression = r.Compression
}
