package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// JPEG quality bounds for recompression
const (
	DefaultELAQuality = 90
	MinELAQuality     = 1
	MaxELAQuality     = 100
)

// errorLevelAnalyzer implements ErrorLevelAnalyzer by recompressing through
// a temporary JPEG file
type errorLevelAnalyzer struct {
	tempDir string
}

// NewErrorLevelAnalyzer creates an analyzer writing its scratch files to
// tempDir, or to os.TempDir() when empty
func NewErrorLevelAnalyzer(tempDir string) ErrorLevelAnalyzer {
	return &errorLevelAnalyzer{tempDir: tempDir}
}

// ValidateQuality rejects qualities outside 1..100
func ValidateQuality(quality int) error {
	if quality < MinELAQuality || quality > MaxELAQuality {
		return apperrors.NewValidationError(
			fmt.Sprintf("ELA quality must be between %d and %d, got %d", MinELAQuality, MaxELAQuality, quality), nil)
	}
	return nil
}

// Analyze recompresses img at quality and returns the per-channel absolute
// difference against the original
func (a *errorLevelAnalyzer) Analyze(img image.Image, quality int) (dm *models.DifferenceMap, err error) {
	if err := ValidateQuality(quality); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.NewTransformError("error level analysis needs a non-empty image", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			dm, err = nil, apperrors.NewTransformError(fmt.Sprintf("error level analysis panicked: %v", r), nil)
		}
	}()

	recompressed, err := a.recompress(img, quality)
	if err != nil {
		return nil, err
	}
	return difference(img, recompressed)
}

// recompress round-trips img through a uniquely named JPEG file, removed on
// every path
func (a *errorLevelAnalyzer) recompress(img image.Image, quality int) (image.Image, error) {
	dir := a.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("ela-%s.jpg", uuid.NewString()))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, apperrors.NewTransformError("failed to create recompression file", err)
	}
	defer os.Remove(path)

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return nil, apperrors.NewTransformError("failed to recompress image", err)
	}
	if err := f.Close(); err != nil {
		return nil, apperrors.NewTransformError("failed to write recompression file", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewTransformError("failed to reopen recompression file", err)
	}
	defer rf.Close()

	out, err := jpeg.Decode(rf)
	if err != nil {
		return nil, apperrors.NewTransformError("failed to decode recompressed image", err)
	}
	return out, nil
}

func isGrayscale(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

// difference computes |original - recompressed| per channel
func difference(original, recompressed image.Image) (*models.DifferenceMap, error) {
	ob, rb := original.Bounds(), recompressed.Bounds()
	if ob.Dx() != rb.Dx() || ob.Dy() != rb.Dy() {
		return nil, apperrors.NewTransformError(
			fmt.Sprintf("recompressed size %dx%d differs from %dx%d", rb.Dx(), rb.Dy(), ob.Dx(), ob.Dy()), nil)
	}

	width, height := ob.Dx(), ob.Dy()
	channels := 3
	if isGrayscale(original) {
		channels = 1
	}
	dm := models.NewDifferenceMap(width, height, channels)

	forEachStrip(height, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * channels
				oc := original.At(ob.Min.X+x, ob.Min.Y+y)
				rc := recompressed.At(rb.Min.X+x, rb.Min.Y+y)

				if channels == 1 {
					og := color.GrayModel.Convert(oc).(color.Gray).Y
					rg := color.GrayModel.Convert(rc).(color.Gray).Y
					dm.Pix[i] = absDiff(og, rg)
					continue
				}

				or, og, obl := rgb8(oc)
				rr, rg, rbl := rgb8(rc)
				dm.Pix[i] = absDiff(or, rr)
				dm.Pix[i+1] = absDiff(og, rg)
				dm.Pix[i+2] = absDiff(obl, rbl)
			}
		}
	})
	return dm, nil
}

func rgb8(c color.Color) (uint8, uint8, uint8) {
	r, g, b, _ := c.RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// DifferenceStats summarises a difference map over all channels
func DifferenceStats(dm *models.DifferenceMap) models.ELAStats {
	if dm == nil || len(dm.Pix) == 0 {
		return models.ELAStats{}
	}
	values := make([]float64, len(dm.Pix))
	for i, v := range dm.Pix {
		values[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return models.ELAStats{
		Mean:   mean,
		StdDev: std,
		Max:    floats.Max(values),
	}
}
