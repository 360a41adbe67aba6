package models

// ImageFormat identifies the container format of a scanned file.
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "JPEG"
	FormatPNG     ImageFormat = "PNG"
	FormatGIF     ImageFormat = "GIF"
	FormatBMP     ImageFormat = "BMP"
	FormatTIFF    ImageFormat = "TIFF"
	FormatPCX     ImageFormat = "PCX"
	FormatUnknown ImageFormat = "UNKNOWN"
)

// Formats lists every known format, UNKNOWN last.
var Formats = []ImageFormat{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatPCX, FormatUnknown}

// ParseFormat maps a decoder or label name onto a format tag.
func ParseFormat(name string) ImageFormat {
	switch name {
	case "jpeg", "jpg", "JPEG", "JPG":
		return FormatJPEG
	case "png", "PNG":
		return FormatPNG
	case "gif", "GIF":
		return FormatGIF
	case "bmp", "BMP":
		return FormatBMP
	case "tiff", "tif", "TIFF", "TIF":
		return FormatTIFF
	case "pcx", "PCX":
		return FormatPCX
	}
	return FormatUnknown
}

// Label is the display form used in tables and CSV.
func (f ImageFormat) Label() string {
	if f == "" || f == FormatUnknown {
		return "Unknown"
	}
	return string(f)
}

// Dimensions is a pixel width and height.
type Dimensions struct {
	Width  int `json:"width" msgpack:"w"`
	Height int `json:"height" msgpack:"h"`
}

// NewDimensions returns nil unless both sides are positive.
func NewDimensions(width, height int) *Dimensions {
	if width <= 0 || height <= 0 {
		return nil
	}
	return &Dimensions{Width: width, Height: height}
}

// Resolution is a horizontal and vertical DPI pair.
type Resolution struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// NewResolution returns nil unless both axes are positive.
func NewResolution(x, y int) *Resolution {
	if x <= 0 || y <= 0 {
		return nil
	}
	return &Resolution{X: x, Y: y}
}

// ImageMetadata is the record produced for one scanned file.
type ImageMetadata struct {
	FileName      string      `json:"fileName" msgpack:"name"`
	FileSizeBytes uint64      `json:"fileSizeBytes" msgpack:"size"`
	Dimensions    *Dimensions `json:"dimensions,omitempty" msgpack:"dim,omitempty"`
	DPI           *Resolution `json:"dpi,omitempty" msgpack:"dpi,omitempty"`
	Depth         int         `json:"depth" msgpack:"depth"`
	Format        ImageFormat `json:"format" msgpack:"format"`
	Compression   string      `json:"compression" msgpack:"comp"`
}

// NewImageMetadata creates a record for fileName with an UNKNOWN format.
func NewImageMetadata(fileName string, size uint64) ImageMetadata {
	return ImageMetadata{
		FileName:      fileName,
		FileSizeBytes: size,
		Format:        FormatUnknown,
	}
}

// Normalize enforces the record invariants on values assembled field by field.
func (m ImageMetadata) Normalize() ImageMetadata {
	if m.Format == "" {
		m.Format = FormatUnknown
	}
	if m.Dimensions != nil {
		m.Dimensions = NewDimensions(m.Dimensions.Width, m.Dimensions.Height)
	}
	if m.DPI != nil {
		m.DPI = NewResolution(m.DPI.X, m.DPI.Y)
	}
	if m.Depth < 0 {
		m.Depth = 0
	}
	return m
}
