package parser

import (
	"fmt"

	"github.com/image-inspector/backend/internal/models"
)

// Compression labels.
const (
	CompressionRLE            = "RLE (Lossless)"
	CompressionUnreadableTIFF = "Unreadable TIFF"
	CompressionUncompressed   = "Uncompressed"
	CompressionLZW            = "LZW (Lossless)"
	CompressionPackBits       = "PackBits (Lossless)"
	CompressionCCITTGroup3    = "CCITT Group 3"
	CompressionCCITTGroup4    = "CCITT Group 4"
	CompressionDeflate        = "Deflate (Lossless)"
	CompressionLossy          = "Lossy"
	CompressionLossless       = "Lossless"
	CompressionBMP            = "Uncompressed / RLE (Lossless)"
	CompressionNotApplicable  = "N/A"
)

// TIFF compression codes (tag 259).
const (
	tiffCompressionNone       = 1
	tiffCompressionCCITTG3    = 3
	tiffCompressionCCITTG4    = 4
	tiffCompressionLZW        = 5
	tiffCompressionDeflate    = 8
	tiffCompressionPackBits   = 32773
	tiffCompressionDeflateOld = 32946
)

var tiffCompressionLabels = map[int]string{
	tiffCompressionNone:       CompressionUncompressed,
	tiffCompressionLZW:        CompressionLZW,
	tiffCompressionPackBits:   CompressionPackBits,
	tiffCompressionCCITTG3:    CompressionCCITTGroup3,
	tiffCompressionCCITTG4:    CompressionCCITTGroup4,
	tiffCompressionDeflate:    CompressionDeflate,
	tiffCompressionDeflateOld: CompressionDeflate,
}

// TIFFCompressionLabel maps a TIFF compression code to its display label.
func TIFFCompressionLabel(code int) string {
	if label, ok := tiffCompressionLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("TIFF Compression %d", code)
}

// DecoderCompressionLabel is the fixed label for formats handled by the
// generic decoder parser.
func DecoderCompressionLabel(format models.ImageFormat) string {
	switch format {
	case models.FormatJPEG:
		return CompressionLossy
	case models.FormatPNG, models.FormatGIF:
		return CompressionLossless
	case models.FormatBMP:
		return CompressionBMP
	}
	return CompressionNotApplicable
}
