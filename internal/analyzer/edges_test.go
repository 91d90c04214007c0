package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// verticalStep is black on the left half and white on the right
func verticalStep(width, height int) *image.RGBA {
	img := createTestImage(width, height, color.Black)
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestEdgeDetector_Uniform(t *testing.T) {
	detector := NewEdgeDetector()

	for _, c := range []color.Color{color.Black, color.White, color.RGBA{120, 30, 200, 255}} {
		em, err := detector.Detect(createTestImage(40, 30, c))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if em.Width != 40 || em.Height != 30 {
			t.Errorf("Expected 40x30 map, got %dx%d", em.Width, em.Height)
		}
		if n := em.Count(); n != 0 {
			t.Errorf("Expected no edges on uniform image, got %d", n)
		}
	}
}

func TestEdgeDetector_VerticalStep(t *testing.T) {
	const width, height = 20, 10
	em, err := NewEdgeDetector().Detect(verticalStep(width, height))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			want := x == width/2-1
			if em.At(x, y) != want {
				t.Errorf("At(%d, %d) = %v, want %v", x, y, em.At(x, y), want)
			}
		}
	}
}

func TestEdgeDetector_BinaryAndSized(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 33, 17))
	for y := 0; y < 17; y++ {
		for x := 0; x < 33; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8((x * y) % 256), 255})
		}
	}

	em, err := NewEdgeDetector().Detect(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(em.Pix) != 33*17 {
		t.Fatalf("Expected %d pixels, got %d", 33*17, len(em.Pix))
	}
	for i, v := range em.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d has non-binary value %d", i, v)
		}
	}
}

func TestEdgeDetector_OffsetBounds(t *testing.T) {
	// sub-images keep their parent's coordinate origin
	parent := verticalStep(40, 20)
	sub := parent.SubImage(image.Rect(10, 5, 30, 15))

	em, err := NewEdgeDetector().Detect(sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if em.Width != 20 || em.Height != 10 {
		t.Fatalf("Expected 20x10 map, got %dx%d", em.Width, em.Height)
	}
	if !em.At(9, 0) {
		t.Error("Expected edge at the step column")
	}
}

func TestEdgeDetector_Empty(t *testing.T) {
	_, err := NewEdgeDetector().Detect(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !apperrors.IsType(err, apperrors.ErrorTypeTransform) {
		t.Errorf("Expected transform error, got %v", err)
	}
}

func TestEdgeDensity(t *testing.T) {
	em, err := NewEdgeDetector().Detect(verticalStep(20, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := EdgeDensity(em)
	if math.Abs(got-0.05) > 1e-9 {
		t.Errorf("Expected density 0.05, got %f", got)
	}
	if EdgeDensity(nil) != 0 {
		t.Error("Expected zero density for nil map")
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		gx, gy int
		want   uint8
	}{
		{10, 0, dirHorizontal},
		{0, 10, dirVertical},
		{10, 10, dirDiagonal},
		{-10, -10, dirDiagonal},
		{10, -10, dirAntiDiagonal},
		{0, 0, dirHorizontal},
	}

	for _, tt := range tests {
		if got := direction(tt.gx, tt.gy); got != tt.want {
			t.Errorf("direction(%d, %d) = %d, want %d", tt.gx, tt.gy, got, tt.want)
		}
	}
}
