package analyzer

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), uint8((x + y) * 2), 255})
		}
	}
	return img
}

func TestErrorLevelAnalyzer_Color(t *testing.T) {
	dir := t.TempDir()
	ela := NewErrorLevelAnalyzer(dir)

	dm, err := ela.Analyze(gradientImage(48, 32), 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dm.Width != 48 || dm.Height != 32 || dm.Channels != 3 {
		t.Errorf("Expected 48x32x3 map, got %dx%dx%d", dm.Width, dm.Height, dm.Channels)
	}
	if len(dm.Pix) != 48*32*3 {
		t.Errorf("Expected %d values, got %d", 48*32*3, len(dm.Pix))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected temp dir to be empty after analysis, found %d entries", len(entries))
	}
}

func TestErrorLevelAnalyzer_Grayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 256)
	}

	dm, err := NewErrorLevelAnalyzer(t.TempDir()).Analyze(gray, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dm.Channels != 1 {
		t.Errorf("Expected 1 channel for grayscale source, got %d", dm.Channels)
	}
}

func TestErrorLevelAnalyzer_LowerQualityLargerError(t *testing.T) {
	img := gradientImage(64, 64)
	ela := NewErrorLevelAnalyzer(t.TempDir())

	high, err := ela.Analyze(img, 100)
	if err != nil {
		t.Fatalf("quality 100: %v", err)
	}
	low, err := ela.Analyze(img, 10)
	if err != nil {
		t.Fatalf("quality 10: %v", err)
	}

	if DifferenceStats(low).Mean <= DifferenceStats(high).Mean {
		t.Errorf("Expected quality 10 to differ more than quality 100: %f <= %f",
			DifferenceStats(low).Mean, DifferenceStats(high).Mean)
	}

	// A lossless source recompressed at quality 100 stays close to zero
	if stats := DifferenceStats(high); stats.Mean >= 2 || stats.Max > 8 {
		t.Errorf("Expected near-zero differences at quality 100, got mean %f max %v", stats.Mean, stats.Max)
	}
}

func TestErrorLevelAnalyzer_InvalidQuality(t *testing.T) {
	ela := NewErrorLevelAnalyzer(t.TempDir())

	for _, q := range []int{0, 101, -1} {
		_, err := ela.Analyze(gradientImage(8, 8), q)
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("quality %d: expected validation error, got %v", q, err)
		}
	}
}

func TestErrorLevelAnalyzer_UnwritableTempDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")

	_, err := NewErrorLevelAnalyzer(missing).Analyze(gradientImage(8, 8), 90)
	if !apperrors.IsType(err, apperrors.ErrorTypeTransform) {
		t.Errorf("Expected transform error, got %v", err)
	}
}

func TestDifferenceStats(t *testing.T) {
	dm := models.NewDifferenceMap(2, 1, 1)
	dm.Pix[0] = 2
	dm.Pix[1] = 6

	stats := DifferenceStats(dm)
	if stats.Mean != 4 || stats.StdDev != 2 || stats.Max != 6 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if (DifferenceStats(nil) != models.ELAStats{}) {
		t.Error("Expected zero stats for nil map")
	}
}
