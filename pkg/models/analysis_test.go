package models

import "testing"

func TestTotalScore(t *testing.T) {
	tests := []struct {
		name       string
		screenshot int
		forgery    int
		expected   int
	}{
		{"both zero", 0, 0, 0},
		{"screenshot only", 35, 0, 35},
		{"forgery only", 0, 80, 80},
		{"sum below cap", 35, 40, 75},
		{"sum at cap", 50, 50, 100},
		{"sum above cap", 50, 80, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TotalScore(tt.screenshot, tt.forgery); got != tt.expected {
				t.Errorf("TotalScore(%d, %d) = %d, expected %d", tt.screenshot, tt.forgery, got, tt.expected)
			}
		})
	}
}

func TestTotalScore_MonotonicAndBounded(t *testing.T) {
	screenshotScores := []int{0, 35, 50}
	forgeryScores := []int{0, 40, 80}

	for _, s := range screenshotScores {
		prev := -1
		for _, f := range forgeryScores {
			got := TotalScore(s, f)
			if got < 0 || got > MaxTotalScore {
				t.Errorf("TotalScore(%d, %d) = %d out of bounds", s, f, got)
			}
			if got < prev {
				t.Errorf("TotalScore not monotonic in forgery score at (%d, %d)", s, f)
			}
			prev = got
		}
	}

	for _, f := range forgeryScores {
		prev := -1
		for _, s := range screenshotScores {
			got := TotalScore(s, f)
			if got < prev {
				t.Errorf("TotalScore not monotonic in screenshot score at (%d, %d)", s, f)
			}
			prev = got
		}
	}
}

func TestEdgeMap(t *testing.T) {
	m := NewEdgeMap(4, 3)
	if m.Count() != 0 {
		t.Fatalf("Expected empty edge map, got %d edges", m.Count())
	}

	m.Set(1, 2)
	m.Set(3, 0)

	if !m.At(1, 2) || !m.At(3, 0) {
		t.Error("Expected set pixels to be edges")
	}
	if m.At(0, 0) {
		t.Error("Expected unset pixel to be a non-edge")
	}
	if m.At(-1, 0) || m.At(4, 0) {
		t.Error("Expected out-of-range pixels to be non-edges")
	}
	if m.Count() != 2 {
		t.Errorf("Expected 2 edges, got %d", m.Count())
	}

	img := m.Image()
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("Unexpected rendered size %v", img.Bounds())
	}
	if img.GrayAt(1, 2).Y != 255 {
		t.Error("Expected rendered edge pixel to be white")
	}
}

func TestDifferenceMap_Image(t *testing.T) {
	m := NewDifferenceMap(2, 1, 3)
	m.Pix[0] = 10  // (0,0) R
	m.Pix[4] = 200 // (1,0) G

	if m.At(0, 0, 0) != 10 || m.At(1, 0, 1) != 200 {
		t.Fatal("Unexpected channel addressing")
	}

	img := m.Image(10)
	r, _, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 100 {
		t.Errorf("Expected amplified red 100, got %d", r>>8)
	}
	_, g, _, _ := img.At(1, 0).RGBA()
	if g>>8 != 255 {
		t.Errorf("Expected clamped green 255, got %d", g>>8)
	}

	gray := NewDifferenceMap(1, 1, 1)
	gray.Pix[0] = 3
	if v := gray.Image(1).At(0, 0); v == nil {
		t.Error("Expected grayscale rendering")
	}
}
