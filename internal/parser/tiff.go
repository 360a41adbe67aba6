package parser

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/rwcarlsen/goexif/tiff"

	"github.com/image-inspector/backend/internal/models"
)

// Baseline TIFF tags read from the first IFD.
const (
	tagImageWidth      uint16 = 256
	tagImageLength     uint16 = 257
	tagBitsPerSample   uint16 = 258
	tagCompression     uint16 = 259
	tagSamplesPerPixel uint16 = 277
	tagXResolution     uint16 = 282
	tagYResolution     uint16 = 283
	tagResolutionUnit  uint16 = 296
)

var errNotTIFF = errors.New("not a TIFF header")

// TIFFParser reads the baseline tags of the first image directory.
type TIFFParser struct{}

// NewTIFFParser creates a new TIFF parser.
func NewTIFFParser() *TIFFParser {
	return &TIFFParser{}
}

func (p *TIFFParser) Name() string { return "TIFF Tags" }

func (p *TIFFParser) Formats() []models.ImageFormat {
	return []models.ImageFormat{models.FormatTIFF}
}

// Parse decodes the tag directory of filePath. A file that cannot be
// opened or decoded, or that declares a zero width or height, is reported
// as unreadable.
func (p *TIFFParser) Parse(filePath string, _ models.ImageFormat) Result {
	unreadable := Result{Compression: CompressionUnreadableTIFF}

	f, err := os.Open(filePath)
	if err != nil {
		return unreadable
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return unreadable
	}
	dir, err := ReadFirstIFD(f, info.Size())
	if err != nil {
		return unreadable
	}
	tags := tagIndex(dir)

	width := tagInt(tags, tagImageWidth, 0)
	height := tagInt(tags, tagImageLength, 0)
	if width <= 0 || height <= 0 {
		return unreadable
	}

	// Missing tags take their baseline defaults.
	bitsPerSample := tagInt(tags, tagBitsPerSample, 1)
	samplesPerPixel := tagInt(tags, tagSamplesPerPixel, 1)
	compression := tagInt(tags, tagCompression, tiffCompressionNone)

	// Resolutions are reported as stored, whatever ResolutionUnit says.
	xres := tagFloat(tags, tagXResolution)
	yres := tagFloat(tags, tagYResolution)

	return Result{
		Dimensions:  models.NewDimensions(width, height),
		DPI:         models.NewResolution(truncateDPI(xres), truncateDPI(yres)),
		Depth:       bitsPerSample * samplesPerPixel,
		Compression: TIFFCompressionLabel(compression),
	}
}

// ReadFirstIFD decodes the first image file directory of the TIFF stream
// in r[0:size]. The next-directory offset is not followed, and tag values
// are read only from inside the stream.
func ReadFirstIFD(r io.ReaderAt, size int64) (*tiff.Dir, error) {
	sr := io.NewSectionReader(r, 0, size)

	var hdr [8]byte
	if _, err := io.ReadFull(sr, hdr[:]); err != nil {
		return nil, errNotTIFF
	}
	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}
	if order.Uint16(hdr[2:4]) != 42 {
		return nil, errNotTIFF
	}

	offset := int64(order.Uint32(hdr[4:8]))
	if offset < int64(len(hdr)) || offset >= size {
		return nil, errNotTIFF
	}
	if _, err := sr.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	dir, _, err := tiff.DecodeDir(sr, order)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

func tagIndex(dir *tiff.Dir) map[uint16]*tiff.Tag {
	tags := make(map[uint16]*tiff.Tag, len(dir.Tags))
	for _, tag := range dir.Tags {
		tags[tag.Id] = tag
	}
	return tags
}

// tagInt returns the first value of an integer tag, or def when the tag is
// absent or not an integer.
func tagInt(tags map[uint16]*tiff.Tag, id uint16, def int) int {
	tag, ok := tags[id]
	if !ok || tag.Count == 0 || tag.Format() != tiff.IntVal {
		return def
	}
	v, err := tag.Int(0)
	if err != nil {
		return def
	}
	return v
}

// tagFloat returns the first value of a rational, float or integer tag,
// or 0 when the tag is absent.
func tagFloat(tags map[uint16]*tiff.Tag, id uint16) float64 {
	tag, ok := tags[id]
	if !ok || tag.Count == 0 {
		return 0
	}
	switch tag.Format() {
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return 0
		}
		return float64(num) / float64(den)
	case tiff.FloatVal:
		v, err := tag.Float(0)
		if err != nil {
			return 0
		}
		return v
	case tiff.IntVal:
		v, err := tag.Int(0)
		if err != nil {
			return 0
		}
		return float64(v)
	}
	return 0
}

// truncateDPI drops the fraction; non-positive and non-finite values
// become 0.
func truncateDPI(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}
