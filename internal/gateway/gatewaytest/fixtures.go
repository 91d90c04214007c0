// Package gatewaytest builds image fixtures and fake metadata tools for
// tests of packages that sit on top of the gateway.
package gatewaytest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
)

// Solid returns a w×h image filled with c
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Checkerboard returns a w×h black and white board with square cells
func Checkerboard(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

// Gradient returns a w×h image with a smooth horizontal colour ramp
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / max(w-1, 1))
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: uint8(y % 256), A: 255})
		}
	}
	return img
}

// WritePNG encodes img as PNG into dir, inserting one tEXt chunk per entry
// of text after the IHDR chunk
func WritePNG(tb testing.TB, dir, name string, img image.Image, text map[string]string) string {
	tb.Helper()
	return writePNG(tb, dir, name, img, text, nil)
}

// WritePNGWithExif is WritePNG plus an eXIf chunk holding exifTIFF
func WritePNGWithExif(tb testing.TB, dir, name string, img image.Image, text map[string]string, exifTIFF []byte) string {
	tb.Helper()
	return writePNG(tb, dir, name, img, text, exifTIFF)
}

func writePNG(tb testing.TB, dir, name string, img image.Image, text map[string]string, exifTIFF []byte) string {
	tb.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()

	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var chunks bytes.Buffer
	for _, k := range keys {
		chunks.Write(pngChunk("tEXt", []byte(k+"\x00"+text[k])))
	}
	if exifTIFF != nil {
		chunks.Write(pngChunk("eXIf", exifTIFF))
	}

	if chunks.Len() > 0 {
		// signature (8) + IHDR chunk (4+4+13+4)
		const ihdrEnd = 8 + 25
		out := make([]byte, 0, len(data)+chunks.Len())
		out = append(out, data[:ihdrEnd]...)
		out = append(out, chunks.Bytes()...)
		out = append(out, data[ihdrEnd:]...)
		data = out
	}

	return writeFile(tb, dir, name, data)
}

func pngChunk(typ string, body []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(len(body)))
	b.WriteString(typ)
	b.Write(body)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(body)
	_ = binary.Write(&b, binary.BigEndian, crc.Sum32())
	return b.Bytes()
}

// WriteJPEG encodes img as JPEG into dir. When exifTIFF is non-nil it is
// embedded as an APP1 Exif segment right after SOI.
func WriteJPEG(tb testing.TB, dir, name string, img image.Image, exifTIFF []byte) string {
	tb.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		tb.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()

	if exifTIFF != nil {
		payload := append([]byte("Exif\x00\x00"), exifTIFF...)
		segment := []byte{0xFF, 0xE1, 0, 0}
		binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
		segment = append(segment, payload...)

		out := make([]byte, 0, len(data)+len(segment))
		out = append(out, data[:2]...)
		out = append(out, segment...)
		out = append(out, data[2:]...)
		data = out
	}

	return writeFile(tb, dir, name, data)
}

// ExifIFD0 builds a little-endian TIFF block with a single IFD0 holding the
// given ASCII tags, keyed by tag number (e.g. 0x010F Make, 0x0131 Software)
func ExifIFD0(tags map[uint16]string) []byte {
	ids := make([]int, 0, len(tags))
	for id := range tags {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	le := binary.LittleEndian
	ifdSize := 2 + 12*len(ids) + 4
	valueOffset := 8 + ifdSize

	var header, ifd, values bytes.Buffer
	header.WriteString("II*\x00")
	_ = binary.Write(&header, le, uint32(8))

	_ = binary.Write(&ifd, le, uint16(len(ids)))
	for _, id := range ids {
		val := append([]byte(tags[uint16(id)]), 0)
		_ = binary.Write(&ifd, le, uint16(id))
		_ = binary.Write(&ifd, le, uint16(2)) // ASCII
		_ = binary.Write(&ifd, le, uint32(len(val)))
		if len(val) <= 4 {
			padded := make([]byte, 4)
			copy(padded, val)
			ifd.Write(padded)
			continue
		}
		_ = binary.Write(&ifd, le, uint32(valueOffset+values.Len()))
		values.Write(val)
		if values.Len()%2 == 1 {
			values.WriteByte(0)
		}
	}
	_ = binary.Write(&ifd, le, uint32(0))

	return append(append(header.Bytes(), ifd.Bytes()...), values.Bytes()...)
}

// WriteCorrupt writes bytes that no image decoder accepts
func WriteCorrupt(tb testing.TB, dir, name string) string {
	tb.Helper()
	return writeFile(tb, dir, name, []byte("definitely not an image"))
}

// FakeTool writes an executable shell script that prints stdout, writes
// stderr and exits with code. Tests using it are skipped on Windows.
func FakeTool(tb testing.TB, dir, stdout, stderr string, code int) string {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("fake metadata tool needs a POSIX shell")
	}

	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s' %q\nprintf '%%s' %q >&2\nexit %d\n", stdout, stderr, code)
	path := filepath.Join(dir, "fake-exiftool")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		tb.Fatalf("write fake tool: %v", err)
	}
	return path
}

func writeFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return path
}
