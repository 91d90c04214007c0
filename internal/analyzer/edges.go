package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// Hysteresis thresholds on the L1 gradient magnitude
const (
	CannyLowThreshold  = 100
	CannyHighThreshold = 200
)

// tan(22.5°) and tan(67.5°), used to bin gradient directions
const (
	tan22 = 0.41421356
	tan67 = 2.41421356
)

const (
	dirHorizontal = iota // gradient along x, edge runs vertically
	dirVertical
	dirDiagonal     // "\" gradient
	dirAntiDiagonal // "/" gradient
)

// cannyDetector implements EdgeDetector with the classic Canny pipeline
type cannyDetector struct {
	low, high int
}

// NewEdgeDetector creates a Canny detector with thresholds 100/200
func NewEdgeDetector() EdgeDetector {
	return &cannyDetector{low: CannyLowThreshold, high: CannyHighThreshold}
}

// Detect returns a binary edge map the size of img
func (d *cannyDetector) Detect(img image.Image) (em *models.EdgeMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			em, err = nil, apperrors.NewTransformError(fmt.Sprintf("edge detection panicked: %v", r), nil)
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.NewTransformError("edge detection needs a non-empty image", nil)
	}

	gray := toGray(img)
	mag, dir := sobel(gray)
	thin := suppressNonMaxima(mag, dir, gray.Rect.Dx(), gray.Rect.Dy())
	return d.hysteresis(thin, gray.Rect.Dx(), gray.Rect.Dy()), nil
}

// toGray converts to 8-bit ITU-R 601 luma, in parallel horizontal strips
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):])
		}
		return gray
	}

	forEachStrip(height, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < width; x++ {
				c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				gray.Pix[y*gray.Stride+x] = c.Y
			}
		}
	})
	return gray
}

// forEachStrip splits [0, height) into one strip per CPU and waits for all
func forEachStrip(height int, fn func(startY, endY int)) {
	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for startY := 0; startY < height; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, height)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			fn(startY, endY)
		}(startY, endY)
	}
	wg.Wait()
}

// sobel computes the L1 gradient magnitude and binned direction of every
// pixel, replicating border pixels
func sobel(gray *image.Gray) ([]int, []uint8) {
	width, height := gray.Rect.Dx(), gray.Rect.Dy()
	mag := make([]int, width*height)
	dir := make([]uint8, width*height)

	at := func(x, y int) int {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return int(gray.Pix[y*gray.Stride+x])
	}

	forEachStrip(height, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < width; x++ {
				gx := -at(x-1, y-1) + at(x+1, y-1) +
					-2*at(x-1, y) + 2*at(x+1, y) +
					-at(x-1, y+1) + at(x+1, y+1)
				gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
					at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

				i := y*width + x
				mag[i] = abs(gx) + abs(gy)
				dir[i] = direction(gx, gy)
			}
		}
	})
	return mag, dir
}

func direction(gx, gy int) uint8 {
	ax, ay := float64(abs(gx)), float64(abs(gy))
	switch {
	case ay <= ax*tan22:
		return dirHorizontal
	case ay >= ax*tan67:
		return dirVertical
	case (gx > 0) == (gy > 0):
		return dirDiagonal
	default:
		return dirAntiDiagonal
	}
}

// suppressNonMaxima keeps pixels that peak along their gradient direction.
// Ties are broken towards the lower-index neighbour so plateaus stay one
// pixel wide.
func suppressNonMaxima(mag []int, dir []uint8, width, height int) []int {
	out := make([]int, len(mag))
	get := func(x, y int) int {
		if x < 0 || y < 0 || x >= width || y >= height {
			return 0
		}
		return mag[y*width+x]
	}

	forEachStrip(height, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				m := mag[i]
				if m == 0 {
					continue
				}

				var prev, next int
				switch dir[i] {
				case dirHorizontal:
					prev, next = get(x-1, y), get(x+1, y)
				case dirVertical:
					prev, next = get(x, y-1), get(x, y+1)
				case dirDiagonal:
					prev, next = get(x-1, y-1), get(x+1, y+1)
				default:
					prev, next = get(x+1, y-1), get(x-1, y+1)
				}

				if m > prev && m >= next {
					out[i] = m
				}
			}
		}
	})
	return out
}

// hysteresis keeps strong pixels and weak pixels 8-connected to them
func (d *cannyDetector) hysteresis(mag []int, width, height int) *models.EdgeMap {
	em := models.NewEdgeMap(width, height)

	stack := make([]int, 0, 1024)
	for i, m := range mag {
		if m > d.high {
			em.Pix[i] = 255
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := ny*width + nx
				if em.Pix[j] == 0 && mag[j] > d.low {
					em.Pix[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}
	return em
}

// EdgeDensity returns the fraction of edge pixels
func EdgeDensity(em *models.EdgeMap) float64 {
	if em == nil || em.Width == 0 || em.Height == 0 {
		return 0
	}
	rows := make([]float64, em.Height)
	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if em.Pix[y*em.Width+x] != 0 {
				rows[y]++
			}
		}
	}
	return floats.Sum(rows) / float64(em.Width*em.Height)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
