package gateway

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// Attributes is the encoder-level key/value information of an image file,
// such as PNG text chunks ("Software") or JFIF density ("dpi")
type Attributes map[string]string

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// BasicAttributes extracts container-level attributes for the handle's format.
// Formats without such attributes yield an empty mapping.
func BasicAttributes(h *ImageHandle) Result[Attributes] {
	data, err := h.raw()
	if err != nil {
		return Failure[Attributes](apperrors.NewExtractionError("failed to read image for attributes", err))
	}

	var attrs Attributes
	switch h.Format {
	case "png":
		attrs, err = pngAttributes(data)
	case "jpeg":
		attrs, err = jpegAttributes(data)
	case "gif":
		attrs, err = gifAttributes(data)
	case "webp":
		attrs, err = webpAttributes(data)
	default:
		attrs = Attributes{}
	}
	if err != nil {
		return Failure[Attributes](apperrors.NewExtractionError("failed to parse image attributes", err))
	}
	return Success(attrs)
}

type pngChunk struct {
	typ  string
	data []byte
}

func readPNGChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("not a valid PNG")
	}

	var chunks []pngChunk
	r := bytes.NewReader(data[len(pngSignature):])
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			break
		}
		length := binary.BigEndian.Uint32(header[:4])
		if int64(length) > int64(r.Len()) {
			return chunks, fmt.Errorf("truncated %q chunk", header[4:8])
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			break
		}
		// skip CRC
		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			break
		}

		typ := string(header[4:8])
		chunks = append(chunks, pngChunk{typ: typ, data: body})
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func pngAttributes(data []byte) (Attributes, error) {
	chunks, err := readPNGChunks(data)
	if err != nil {
		return nil, err
	}

	attrs := Attributes{}
	for _, c := range chunks {
		switch c.typ {
		case "tEXt":
			// keyword\0text
			if key, val, ok := bytes.Cut(c.data, []byte{0}); ok && len(key) > 0 {
				attrs[string(key)] = string(val)
			}
		case "zTXt":
			// keyword\0method compressed-text
			key, rest, ok := bytes.Cut(c.data, []byte{0})
			if !ok || len(key) == 0 || len(rest) < 1 {
				continue
			}
			if text, err := inflate(rest[1:]); err == nil {
				attrs[string(key)] = string(text)
			}
		case "iTXt":
			key, val, ok := parseITXt(c.data)
			if ok {
				attrs[key] = val
			}
		case "pHYs":
			if len(c.data) == 9 && c.data[8] == 1 {
				// pixels per metre
				px := float64(binary.BigEndian.Uint32(c.data[0:4]))
				py := float64(binary.BigEndian.Uint32(c.data[4:8]))
				attrs["dpi"] = fmt.Sprintf("(%g, %g)", roundDPI(px*0.0254), roundDPI(py*0.0254))
			}
		case "gAMA":
			if len(c.data) == 4 {
				attrs["gamma"] = fmt.Sprintf("%g", float64(binary.BigEndian.Uint32(c.data))/100000.0)
			}
		case "eXIf":
			attrs["exif"] = blobValue(c.data)
		case "iCCP":
			attrs["icc_profile"] = blobValue(c.data)
		}
	}
	return attrs, nil
}

// parseITXt decodes keyword\0flag method language\0translated\0text
func parseITXt(data []byte) (string, string, bool) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(key) == 0 || len(rest) < 2 {
		return "", "", false
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	for i := 0; i < 2; i++ {
		_, after, found := bytes.Cut(rest, []byte{0})
		if !found {
			return "", "", false
		}
		rest = after
	}
	if compressed {
		text, err := inflate(rest)
		if err != nil {
			return "", "", false
		}
		rest = text
	}
	return string(key), string(rest), true
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, 1<<20))
}

type jpegSegment struct {
	marker byte
	data   []byte
}

// readJPEGSegments walks the marker segments up to the start of scan
func readJPEGSegments(data []byte) ([]jpegSegment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("not a valid JPEG")
	}

	var segments []jpegSegment
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return segments, fmt.Errorf("invalid marker at offset %d", pos)
		}
		marker := data[pos+1]
		if marker == 0xFF {
			// fill byte
			pos++
			continue
		}
		if marker == 0xD9 || marker == 0xDA {
			break
		}
		if (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			pos += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(data) {
			return segments, fmt.Errorf("truncated segment 0x%X", marker)
		}
		segments = append(segments, jpegSegment{marker: marker, data: data[pos+4 : pos+2+length]})
		pos += 2 + length
	}
	return segments, nil
}

var (
	jfifPrefix = []byte("JFIF\x00")
	exifPrefix = []byte("Exif\x00\x00")
	xmpPrefix  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccPrefix  = []byte("ICC_PROFILE\x00")
)

func jpegAttributes(data []byte) (Attributes, error) {
	segments, err := readJPEGSegments(data)
	if err != nil && len(segments) == 0 {
		return nil, err
	}

	attrs := Attributes{}
	for _, s := range segments {
		switch {
		case s.marker == 0xE0 && bytes.HasPrefix(s.data, jfifPrefix) && len(s.data) >= 12:
			major, minor := int(s.data[5]), int(s.data[6])
			unit := int(s.data[7])
			xd := int(binary.BigEndian.Uint16(s.data[8:10]))
			yd := int(binary.BigEndian.Uint16(s.data[10:12]))
			attrs["jfif"] = fmt.Sprintf("%d", major<<8|minor)
			attrs["jfif_version"] = fmt.Sprintf("(%d, %d)", major, minor)
			attrs["jfif_unit"] = fmt.Sprintf("%d", unit)
			attrs["jfif_density"] = fmt.Sprintf("(%d, %d)", xd, yd)
			switch unit {
			case 1:
				attrs["dpi"] = fmt.Sprintf("(%d, %d)", xd, yd)
			case 2:
				attrs["dpi"] = fmt.Sprintf("(%g, %g)", roundDPI(float64(xd)*2.54), roundDPI(float64(yd)*2.54))
			}
		case s.marker == 0xE1 && bytes.HasPrefix(s.data, exifPrefix):
			attrs["exif"] = blobValue(s.data)
		case s.marker == 0xE1 && bytes.HasPrefix(s.data, xmpPrefix):
			attrs["xmp"] = blobValue(s.data[len(xmpPrefix):])
		case s.marker == 0xE2 && bytes.HasPrefix(s.data, iccPrefix):
			attrs["icc_profile"] = blobValue(s.data)
		case s.marker == 0xEE && bytes.HasPrefix(s.data, []byte("Adobe")) && len(s.data) >= 12:
			attrs["adobe"] = fmt.Sprintf("%d", binary.BigEndian.Uint16(s.data[5:7]))
			attrs["adobe_transform"] = fmt.Sprintf("%d", s.data[11])
		case s.marker == 0xFE:
			attrs["comment"] = strings.TrimRight(string(s.data), "\x00")
		}
	}
	return attrs, nil
}

func gifAttributes(data []byte) (Attributes, error) {
	if len(data) < 13 || !bytes.HasPrefix(data, []byte("GIF")) {
		return nil, fmt.Errorf("not a valid GIF")
	}

	attrs := Attributes{"version": string(data[:6])}
	if comment, ok := gifComment(data); ok {
		attrs["comment"] = comment
	}
	return attrs, nil
}

// gifComment returns the first comment extension, walking the block stream
// up to the trailer
func gifComment(data []byte) (string, bool) {
	pos := 13
	if packed := data[10]; packed&0x80 != 0 {
		pos += 3 << ((packed & 0x07) + 1)
	}

	// skipSubBlocks advances past a sub-block chain, returning its payload
	skipSubBlocks := func(collect bool) ([]byte, bool) {
		var payload []byte
		for pos < len(data) {
			size := int(data[pos])
			pos++
			if size == 0 {
				return payload, true
			}
			if pos+size > len(data) {
				return nil, false
			}
			if collect {
				payload = append(payload, data[pos:pos+size]...)
			}
			pos += size
		}
		return nil, false
	}

	for pos < len(data) {
		switch data[pos] {
		case 0x21:
			if pos+1 >= len(data) {
				return "", false
			}
			label := data[pos+1]
			pos += 2
			payload, ok := skipSubBlocks(label == 0xFE)
			if !ok {
				return "", false
			}
			if label == 0xFE {
				return string(payload), true
			}
		case 0x2C:
			if pos+10 > len(data) {
				return "", false
			}
			packed := data[pos+9]
			pos += 10
			if packed&0x80 != 0 {
				pos += 3 << ((packed & 0x07) + 1)
			}
			// LZW minimum code size
			pos++
			if _, ok := skipSubBlocks(false); !ok {
				return "", false
			}
		default:
			return "", false
		}
	}
	return "", false
}

// readRIFFChunks returns the top-level chunks of a WebP container
func readRIFFChunks(data []byte) (map[string][]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("not a valid WebP")
	}

	chunks := map[string][]byte{}
	pos := 12
	for pos+8 <= len(data) {
		fourcc := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		if size < 0 || start+size > len(data) {
			break
		}
		chunks[fourcc] = data[start : start+size]
		pos = start + size + size%2
	}
	return chunks, nil
}

func webpAttributes(data []byte) (Attributes, error) {
	chunks, err := readRIFFChunks(data)
	if err != nil {
		return nil, err
	}

	attrs := Attributes{}
	if c, ok := chunks["EXIF"]; ok {
		attrs["exif"] = blobValue(c)
	}
	if c, ok := chunks["ICCP"]; ok {
		attrs["icc_profile"] = blobValue(c)
	}
	if c, ok := chunks["XMP "]; ok {
		attrs["xmp"] = blobValue(c)
	}
	return attrs, nil
}

// exifPayload returns the raw TIFF-structured EXIF block embedded in data
func exifPayload(data []byte, format string) ([]byte, bool) {
	switch format {
	case "jpeg":
		segments, _ := readJPEGSegments(data)
		for _, s := range segments {
			if s.marker == 0xE1 && bytes.HasPrefix(s.data, exifPrefix) {
				return s.data[len(exifPrefix):], true
			}
		}
	case "png":
		chunks, _ := readPNGChunks(data)
		for _, c := range chunks {
			if c.typ == "eXIf" {
				return c.data, true
			}
		}
	case "webp":
		chunks, err := readRIFFChunks(data)
		if err == nil {
			if c, ok := chunks["EXIF"]; ok {
				return bytes.TrimPrefix(c, exifPrefix), true
			}
		}
	case "tiff":
		return data, true
	}
	return nil, false
}

func blobValue(b []byte) string {
	return fmt.Sprintf("<%d bytes>", len(b))
}

func roundDPI(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
