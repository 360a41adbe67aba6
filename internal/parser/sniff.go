package parser

import (
	"bufio"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Content sniffers for the registry behind image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/image-inspector/backend/internal/models"
)

// Sniff returns the format of the file at filePath. It asks the decoder
// registry first and falls back to the file extension. Unreadable or
// unrecognised files are reported as FormatUnknown.
func Sniff(filePath string) models.ImageFormat {
	if f := sniffContent(filePath); f != models.FormatUnknown {
		return f
	}
	return SniffExtension(filePath)
}

// SniffExtension maps the extensions that have no content sniffer.
func SniffExtension(filePath string) models.ImageFormat {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pcx":
		return models.FormatPCX
	case ".tif", ".tiff":
		return models.FormatTIFF
	}
	return models.FormatUnknown
}

func sniffContent(filePath string) models.ImageFormat {
	f, err := os.Open(filePath)
	if err != nil {
		return models.FormatUnknown
	}
	defer f.Close()

	// DecodeConfig reports the matched format name even when the decoder
	// then fails on the rest of the header.
	_, name, err := image.DecodeConfig(bufio.NewReader(f))
	if errors.Is(err, image.ErrFormat) || name == "" {
		return models.FormatUnknown
	}
	return models.ParseFormat(name)
}
