package parser

import (
	"bufio"
	"image"
	"io"
	"os"

	"github.com/image-inspector/backend/internal/models"
)

// GenericParser covers the formats the standard decoder registry can
// read. Dimensions come from a size-only DecodeConfig query; DPI and depth
// come from a separate full decode plus a header density probe, so a
// corrupt pixel stream does not lose the declared size.
type GenericParser struct{}

// NewGenericParser creates a new decoder-backed parser.
func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

func (p *GenericParser) Name() string { return "Image Decoder" }

func (p *GenericParser) Formats() []models.ImageFormat {
	return []models.ImageFormat{
		models.FormatJPEG,
		models.FormatPNG,
		models.FormatGIF,
		models.FormatBMP,
		models.FormatUnknown,
	}
}

// Parse runs the size query and the pixel statistics query.
func (p *GenericParser) Parse(filePath string, format models.ImageFormat) Result {
	res := Result{Compression: DecoderCompressionLabel(format)}

	res.Dimensions = querySize(filePath)

	stats, ok := queryPixelStats(filePath, format)
	if !ok {
		return res
	}
	if res.Dimensions == nil {
		res.Dimensions = stats.bounds
	}
	res.DPI = models.NewResolution(stats.dpiX, stats.dpiY)
	res.Depth = stats.depth
	return res
}

func querySize(filePath string) *models.Dimensions {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return nil
	}
	return models.NewDimensions(cfg.Width, cfg.Height)
}

type pixelStats struct {
	bounds     *models.Dimensions
	dpiX, dpiY int
	depth      int
}

// queryPixelStats decodes the whole image and, if that succeeds, probes
// the header for physical density and declared bit depth.
func queryPixelStats(filePath string, format models.ImageFormat) (pixelStats, bool) {
	f, err := os.Open(filePath)
	if err != nil {
		return pixelStats{}, false
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return pixelStats{}, false
	}

	stats := pixelStats{
		bounds: models.NewDimensions(img.Bounds().Dx(), img.Bounds().Dy()),
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		h := probeHeader(f, format)
		stats.dpiX = DPIFromDotsPerMeter(h.dotsPerMeterX)
		stats.dpiY = DPIFromDotsPerMeter(h.dotsPerMeterY)
		stats.depth = h.depth
	}
	if stats.depth <= 0 {
		stats.depth = depthOfImage(img)
	}
	return stats, true
}

// depthOfImage estimates bits per pixel from the decoded pixel layout.
func depthOfImage(img image.Image) int {
	switch img.(type) {
	case *image.Paletted, *image.Gray, *image.Alpha:
		return 8
	case *image.Gray16, *image.Alpha16:
		return 16
	case *image.YCbCr:
		return 24
	case *image.RGBA64, *image.NRGBA64:
		return 64
	}
	return 32
}
