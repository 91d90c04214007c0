package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"
)

func noiseImage(width, height int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestCloneFinder_CopiedBlock(t *testing.T) {
	img := noiseImage(256, 128, 42)
	// copy the tile at (0,0) onto the tile at (160,64)
	draw.Draw(img, image.Rect(160, 64, 192, 96), img, image.Point{}, draw.Src)

	candidates, err := NewCloneFinder(32).Find(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, c := range candidates {
		if c.SourceX == 0 && c.SourceY == 0 && c.TargetX == 160 && c.TargetY == 64 {
			found = true
			if c.Distance != 0 || c.Size != 32 {
				t.Errorf("unexpected candidate %+v", c)
			}
		}
	}
	if !found {
		t.Errorf("Expected copied block to be reported, got %+v", candidates)
	}
}

func TestCloneFinder_UniformImage(t *testing.T) {
	candidates, err := NewCloneFinder(16).Find(createTestImage(128, 128, color.White))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates on a uniform image, got %d", len(candidates))
	}
}

func TestCloneFinder_Capped(t *testing.T) {
	// a repeating texture makes every tile a clone of every other
	tile := noiseImage(16, 16, 7)
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y += 16 {
		for x := 0; x < 256; x += 16 {
			draw.Draw(img, image.Rect(x, y, x+16, y+16), tile, image.Point{}, draw.Src)
		}
	}

	candidates, err := NewCloneFinder(16).Find(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != DefaultCloneMaxCandidate {
		t.Errorf("Expected %d candidates, got %d", DefaultCloneMaxCandidate, len(candidates))
	}
}

func TestCloneFinder_DefaultBlockSize(t *testing.T) {
	if got := NewCloneFinder(0).BlockSize(); got != DefaultCloneBlockSize {
		t.Errorf("Expected default block size %d, got %d", DefaultCloneBlockSize, got)
	}
}
