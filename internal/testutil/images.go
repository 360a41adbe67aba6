// images.go - Byte-level image fixtures for tests
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
)

// PNG encodes an opaque RGB image of the given size (8-bit truecolor).
func PNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGWithPhys inserts a pHYs chunk (unit: metre) right after IHDR.
func PNGWithPhys(width, height int, dotsPerMeterX, dotsPerMeterY uint32) []byte {
	data := PNG(width, height)
	// signature (8) + IHDR length/type (8) + IHDR data (13) + CRC (4)
	const ihdrEnd = 8 + 8 + 13 + 4

	payload := make([]byte, 9)
	binary.BigEndian.PutUint32(payload[0:4], dotsPerMeterX)
	binary.BigEndian.PutUint32(payload[4:8], dotsPerMeterY)
	payload[8] = 1

	var out bytes.Buffer
	out.Write(data[:ihdrEnd])
	out.Write(pngChunk("pHYs", payload))
	out.Write(data[ihdrEnd:])
	return out.Bytes()
}

func pngChunk(typ string, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(len(payload)))
	b.WriteString(typ)
	b.Write(payload)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(payload)
	binary.Write(&b, binary.BigEndian, crc.Sum32())
	return b.Bytes()
}

// JPEG encodes a colour JPEG. When units is non-zero a JFIF APP0 segment
// with the given density is inserted after SOI.
func JPEG(width, height int, units byte, xDensity, yDensity uint16) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	data := buf.Bytes()
	if units == 0 {
		return data
	}

	app0 := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, units}
	app0 = binary.BigEndian.AppendUint16(app0, xDensity)
	app0 = binary.BigEndian.AppendUint16(app0, yDensity)
	app0 = append(app0, 0x00, 0x00)

	out := append([]byte{}, data[:2]...)
	out = append(out, app0...)
	return append(out, data[2:]...)
}

// JPEGWithEXIF encodes a colour JPEG carrying tiffData as an APP1 Exif
// segment right after SOI.
func JPEGWithEXIF(width, height int, tiffData []byte) []byte {
	data := JPEG(width, height, 0, 0, 0)

	payload := append([]byte("Exif\x00\x00"), tiffData...)
	app1 := []byte{0xFF, 0xE1}
	app1 = binary.BigEndian.AppendUint16(app1, uint16(len(payload)+2))
	app1 = append(app1, payload...)

	out := append([]byte{}, data[:2]...)
	out = append(out, app1...)
	return append(out, data[2:]...)
}

// GIF encodes a paletted image.
func GIF(width, height int) []byte {
	img := image.NewPaletted(image.Rect(0, 0, width, height), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// BMP builds an uncompressed 24-bit BMP with a BITMAPINFOHEADER.
func BMP(width, height int, ppmX, ppmY int32) []byte {
	rowSize := (width*3 + 3) &^ 3
	pixelBytes := rowSize * height

	le := binary.LittleEndian
	b := make([]byte, 54+pixelBytes)
	b[0], b[1] = 'B', 'M'
	le.PutUint32(b[2:], uint32(len(b)))
	le.PutUint32(b[10:], 54)
	le.PutUint32(b[14:], 40)
	le.PutUint32(b[18:], uint32(width))
	le.PutUint32(b[22:], uint32(height))
	le.PutUint16(b[26:], 1)
	le.PutUint16(b[28:], 24)
	le.PutUint32(b[34:], uint32(pixelBytes))
	le.PutUint32(b[38:], uint32(ppmX))
	le.PutUint32(b[42:], uint32(ppmY))
	return b
}

// PCXHeader describes the header fields a PCX fixture is built from.
type PCXHeader struct {
	BitsPerPlane           byte
	Planes                 byte
	XMin, YMin, XMax, YMax uint16
	HDPI, VDPI             uint16
}

// PCX builds a 128-byte PCX header followed by a few bytes of RLE data.
func PCX(h PCXHeader) []byte {
	le := binary.LittleEndian
	b := make([]byte, 128, 136)
	b[0] = 0x0A
	b[1] = 5
	b[2] = 1
	b[3] = h.BitsPerPlane
	le.PutUint16(b[4:], h.XMin)
	le.PutUint16(b[6:], h.YMin)
	le.PutUint16(b[8:], h.XMax)
	le.PutUint16(b[10:], h.YMax)
	le.PutUint16(b[12:], h.HDPI)
	le.PutUint16(b[14:], h.VDPI)
	b[65] = h.Planes
	return append(b, 0xC1, 0x00, 0xC1, 0x00)
}

// TIFFOptions describes the tags written by TIFF. Zero-valued optional
// fields are omitted from the directory.
type TIFFOptions struct {
	Width, Height   uint32
	BitsPerSample   uint16
	SamplesPerPixel uint16
	Compression     uint16
	// XRes and YRes are numerator/denominator pairs.
	XRes, YRes     [2]uint32
	ResolutionUnit uint16
}

type tiffEntry struct {
	tag, typ uint16
	count    uint32
	value    []byte
}

// TIFF builds a little-endian TIFF with a single image directory.
func TIFF(o TIFFOptions) []byte {
	le := binary.LittleEndian
	short := func(tag, v uint16) tiffEntry {
		return tiffEntry{tag: tag, typ: 3, count: 1, value: le.AppendUint16(nil, v)}
	}
	long := func(tag uint16, v uint32) tiffEntry {
		return tiffEntry{tag: tag, typ: 4, count: 1, value: le.AppendUint32(nil, v)}
	}
	rational := func(tag uint16, v [2]uint32) tiffEntry {
		return tiffEntry{tag: tag, typ: 5, count: 1, value: le.AppendUint32(le.AppendUint32(nil, v[0]), v[1])}
	}

	entries := []tiffEntry{
		long(256, o.Width),
		long(257, o.Height),
	}
	if o.BitsPerSample != 0 {
		entries = append(entries, short(258, o.BitsPerSample))
	}
	if o.Compression != 0 {
		entries = append(entries, short(259, o.Compression))
	}
	if o.SamplesPerPixel != 0 {
		entries = append(entries, short(277, o.SamplesPerPixel))
	}
	if o.XRes[1] != 0 {
		entries = append(entries, rational(282, o.XRes))
	}
	if o.YRes[1] != 0 {
		entries = append(entries, rational(283, o.YRes))
	}
	if o.ResolutionUnit != 0 {
		entries = append(entries, short(296, o.ResolutionUnit))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdSize := 2 + len(entries)*12 + 4
	extraOffset := uint32(8 + ifdSize)

	var extra []byte
	b := []byte{'I', 'I', 42, 0}
	b = le.AppendUint32(b, 8)
	b = le.AppendUint16(b, uint16(len(entries)))
	for _, e := range entries {
		b = le.AppendUint16(b, e.tag)
		b = le.AppendUint16(b, e.typ)
		b = le.AppendUint32(b, e.count)
		if len(e.value) <= 4 {
			v := make([]byte, 4)
			copy(v, e.value)
			b = append(b, v...)
			continue
		}
		b = le.AppendUint32(b, extraOffset+uint32(len(extra)))
		extra = append(extra, e.value...)
	}
	b = le.AppendUint32(b, 0)
	return append(b, extra...)
}

// SetNextIFD overwrites the next-directory offset of the first IFD of a
// little-endian TIFF built by TIFF.
func SetNextIFD(data []byte, next uint32) []byte {
	le := binary.LittleEndian
	pos := 8 + 2 + int(le.Uint16(data[8:10]))*12
	le.PutUint32(data[pos:], next)
	return data
}

// TIFFWithIFDLoop builds a TIFF whose first directory links to a second
// one-tag directory, which links back to the first.
func TIFFWithIFDLoop(o TIFFOptions) []byte {
	le := binary.LittleEndian
	data := TIFF(o)
	second := uint32(len(data))
	SetNextIFD(data, second)

	data = le.AppendUint16(data, 1)
	data = le.AppendUint16(data, 256)
	data = le.AppendUint16(data, 4)
	data = le.AppendUint32(data, 1)
	data = le.AppendUint32(data, 1)
	return le.AppendUint32(data, 8)
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		panic(err)
	}
	return path
}
