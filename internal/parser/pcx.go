package parser

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/image-inspector/backend/internal/models"
)

// PCXHeaderSize is the fixed size of a PCX file header.
const PCXHeaderSize = 128

// PCX header offsets.
const (
	pcxBitsPerPlane = 3
	pcxXMin         = 4
	pcxYMin         = 6
	pcxXMax         = 8
	pcxYMax         = 10
	pcxHDPI         = 12
	pcxVDPI         = 14
	pcxPlanes       = 65
)

// PCXParser reads the 128-byte ZSoft PCX header directly.
type PCXParser struct{}

// NewPCXParser creates a new PCX parser.
func NewPCXParser() *PCXParser {
	return &PCXParser{}
}

func (p *PCXParser) Name() string { return "PCX Header" }

func (p *PCXParser) Formats() []models.ImageFormat {
	return []models.ImageFormat{models.FormatPCX}
}

// Parse reads the header of filePath. Short or unreadable files produce a
// result with no dimensions and depth 0. Compression is always RLE.
func (p *PCXParser) Parse(filePath string, _ models.ImageFormat) Result {
	f, err := os.Open(filePath)
	if err != nil {
		return Result{Compression: CompressionRLE}
	}
	defer f.Close()

	header := make([]byte, PCXHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return Result{Compression: CompressionRLE}
	}
	return ParsePCXHeader(header)
}

// ParsePCXHeader decodes a PCX header. header must hold at least
// PCXHeaderSize bytes.
func ParsePCXHeader(header []byte) Result {
	res := Result{Compression: CompressionRLE}
	if len(header) < PCXHeaderSize {
		return res
	}

	le := binary.LittleEndian
	xMin := int(le.Uint16(header[pcxXMin:]))
	yMin := int(le.Uint16(header[pcxYMin:]))
	xMax := int(le.Uint16(header[pcxXMax:]))
	yMax := int(le.Uint16(header[pcxYMax:]))

	res.Dimensions = models.NewDimensions(xMax-xMin+1, yMax-yMin+1)
	res.Depth = int(header[pcxBitsPerPlane]) * int(header[pcxPlanes])
	res.DPI = models.NewResolution(
		int(le.Uint16(header[pcxHDPI:])),
		int(le.Uint16(header[pcxVDPI:])),
	)
	return res
}
