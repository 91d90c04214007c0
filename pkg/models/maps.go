package models

import (
	"image"
	"image/color"
)

// EdgeMap is a binary edge grid with the source image's dimensions.
// Pix holds one byte per pixel, 255 for an edge and 0 otherwise.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewEdgeMap allocates an empty edge map
func NewEdgeMap(width, height int) *EdgeMap {
	return &EdgeMap{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At reports whether (x, y) is an edge
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks (x, y) as an edge
func (m *EdgeMap) Set(x, y int) {
	m.Pix[y*m.Width+x] = 255
}

// Count returns the number of edge pixels
func (m *EdgeMap) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Image renders the edge map as a grayscale image
func (m *EdgeMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, m.Pix)
	return img
}

// DifferenceMap holds per-pixel absolute deltas between an image and its
// recompressed copy. Channels is 1 for grayscale sources and 3 otherwise.
type DifferenceMap struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewDifferenceMap allocates a zeroed difference map
func NewDifferenceMap(width, height, channels int) *DifferenceMap {
	return &DifferenceMap{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// At returns the delta of channel c at (x, y)
func (m *DifferenceMap) At(x, y, c int) uint8 {
	return m.Pix[(y*m.Width+x)*m.Channels+c]
}

// Image renders the difference map; deltas are multiplied by scale so that
// small compression errors become visible.
func (m *DifferenceMap) Image(scale int) image.Image {
	if scale < 1 {
		scale = 1
	}
	amplify := func(v uint8) uint8 {
		s := int(v) * scale
		if s > 255 {
			s = 255
		}
		return uint8(s)
	}

	rect := image.Rect(0, 0, m.Width, m.Height)
	if m.Channels == 1 {
		img := image.NewGray(rect)
		for i, v := range m.Pix {
			img.Pix[i] = amplify(v)
		}
		return img
	}

	img := image.NewRGBA(rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: amplify(m.At(x, y, 0)),
				G: amplify(m.At(x, y, 1)),
				B: amplify(m.At(x, y, 2)),
				A: 255,
			})
		}
	}
	return img
}
