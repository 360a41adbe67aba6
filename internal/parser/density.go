package parser

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/image-inspector/backend/internal/models"
)

const inchesPerMeter = 0.0254

// EXIF ResolutionUnit value for centimetres; 2 (inches) is the default.
const resolutionUnitCentimeter = 3

// DPIFromDotsPerMeter converts a physical density to whole dots per inch.
// Non-positive densities are unknown and map to 0.
func DPIFromDotsPerMeter(dpm float64) int {
	if dpm <= 0 || math.IsNaN(dpm) || math.IsInf(dpm, 0) {
		return 0
	}
	return int(math.Round(dpm * inchesPerMeter))
}

// headerInfo is what a format's header declares about pixel storage.
type headerInfo struct {
	dotsPerMeterX float64
	dotsPerMeterY float64
	depth         int
	// exif is the TIFF stream of a JPEG's APP1 Exif segment, if any.
	exif []byte
}

func probeHeader(r io.ReadSeeker, format models.ImageFormat) headerInfo {
	switch format {
	case models.FormatPNG:
		return probePNG(bufio.NewReader(r))
	case models.FormatJPEG:
		h := probeJPEG(bufio.NewReader(r))
		if (h.dotsPerMeterX <= 0 || h.dotsPerMeterY <= 0) && h.exif != nil {
			h.dotsPerMeterX, h.dotsPerMeterY = probeEXIF(h.exif)
		}
		return h
	case models.FormatBMP:
		return probeBMP(r)
	case models.FormatGIF:
		return headerInfo{depth: 8}
	}
	return headerInfo{}
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// probePNG walks the chunks ahead of the image data for IHDR and pHYs.
func probePNG(r io.Reader) headerInfo {
	var h headerInfo
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, pngSignature) {
		return h
	}

	var chunk [8]byte
	for {
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return h
		}
		length := binary.BigEndian.Uint32(chunk[:4])
		switch string(chunk[4:8]) {
		case "IHDR":
			data, ok := readChunk(r, length)
			if !ok || len(data) < 13 {
				return h
			}
			h.depth = int(data[8]) * pngChannels(data[9])
		case "pHYs":
			data, ok := readChunk(r, length)
			if !ok || len(data) < 9 {
				return h
			}
			// Unit 1 is the metre; unit 0 only gives an aspect ratio.
			if data[8] == 1 {
				h.dotsPerMeterX = float64(binary.BigEndian.Uint32(data[0:4]))
				h.dotsPerMeterY = float64(binary.BigEndian.Uint32(data[4:8]))
			}
		case "IDAT", "IEND":
			return h
		default:
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				return h
			}
		}
	}
}

// readChunk reads chunk data and skips the trailing CRC.
func readChunk(r io.Reader, length uint32) ([]byte, bool) {
	if length > 1<<20 {
		return nil, false
	}
	data := make([]byte, int(length)+4)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, false
	}
	return data[:length], true
}

func pngChannels(colorType byte) int {
	switch colorType {
	case 0, 3:
		return 1
	case 2:
		return 3
	case 4:
		return 2
	case 6:
		return 4
	}
	return 0
}

// probeJPEG reads markers up to the first scan for the JFIF density, the
// Exif segment and the frame's sample precision and component count.
func probeJPEG(r *bufio.Reader) headerInfo {
	var h headerInfo
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != 0xD8 {
		return h
	}

	for {
		m, ok := nextMarker(r)
		if !ok || m == 0xD9 || m == 0xDA {
			return h
		}
		if m == 0x01 || (m >= 0xD0 && m <= 0xD7) {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return h
		}
		length := int(binary.BigEndian.Uint16(lenBuf[:])) - 2
		if length < 0 {
			return h
		}
		seg := make([]byte, length)
		if _, err := io.ReadFull(r, seg); err != nil {
			return h
		}

		switch {
		case m == 0xE0 && len(seg) >= 12 && string(seg[:5]) == "JFIF\x00":
			units := seg[7]
			x := float64(binary.BigEndian.Uint16(seg[8:10]))
			y := float64(binary.BigEndian.Uint16(seg[10:12]))
			switch units {
			case 1:
				h.dotsPerMeterX, h.dotsPerMeterY = x/inchesPerMeter, y/inchesPerMeter
			case 2:
				h.dotsPerMeterX, h.dotsPerMeterY = x*100, y*100
			}
		case m == 0xE1 && h.exif == nil && len(seg) > 6 && string(seg[:6]) == "Exif\x00\x00":
			h.exif = seg[6:]
		case isStartOfFrame(m) && len(seg) >= 6:
			h.depth = int(seg[0]) * int(seg[5])
		}
	}
}

// nextMarker reads the next marker code. Any number of 0xFF fill bytes
// may precede it.
func nextMarker(r *bufio.Reader) (byte, bool) {
	b, err := r.ReadByte()
	if err != nil || b != 0xFF {
		return 0, false
	}
	for b == 0xFF {
		if b, err = r.ReadByte(); err != nil {
			return 0, false
		}
	}
	return b, true
}

func isStartOfFrame(m byte) bool {
	return m >= 0xC0 && m <= 0xCF && m != 0xC4 && m != 0xC8 && m != 0xCC
}

// probeEXIF reads XResolution and YResolution from IFD0 of an Exif TIFF
// stream, as dots per metre.
func probeEXIF(data []byte) (float64, float64) {
	dir, err := ReadFirstIFD(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, 0
	}
	tags := tagIndex(dir)
	xres := tagFloat(tags, tagXResolution)
	yres := tagFloat(tags, tagYResolution)

	perMeter := 1 / inchesPerMeter
	if tagInt(tags, tagResolutionUnit, 2) == resolutionUnitCentimeter {
		perMeter = 100
	}
	return xres * perMeter, yres * perMeter
}

// probeBMP reads the bit count and pixels-per-metre fields of the DIB
// header.
func probeBMP(r io.Reader) headerInfo {
	var h headerInfo
	hdr := make([]byte, 46)
	n, err := io.ReadFull(r, hdr)
	if err != nil && n < 26 {
		return h
	}
	hdr = hdr[:n]
	if hdr[0] != 'B' || hdr[1] != 'M' {
		return h
	}

	le := binary.LittleEndian
	dibSize := le.Uint32(hdr[14:18])
	if dibSize == 12 {
		h.depth = int(le.Uint16(hdr[24:26]))
		return h
	}
	if len(hdr) < 46 {
		return h
	}
	h.depth = int(le.Uint16(hdr[28:30]))
	h.dotsPerMeterX = float64(int32(le.Uint32(hdr[38:42])))
	h.dotsPerMeterY = float64(int32(le.Uint32(hdr[42:46])))
	return h
}
