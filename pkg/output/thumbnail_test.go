package output

import (
	"image"
	"image/color"
	"testing"
)

func TestThumbnail_Dimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSize       int
		wantW, wantH  int
	}{
		{"landscape", 400, 225, 100, 100, 56},
		{"portrait", 90, 300, 150, 45, 150},
		{"square", 64, 64, 32, 32, 32},
		{"already small", 20, 10, 100, 20, 10},
		{"no limit", 20, 10, 0, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.width, tt.height))
			thumb := Thumbnail(src, tt.maxSize)
			if thumb.Bounds().Dx() != tt.wantW || thumb.Bounds().Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, thumb.Bounds().Dx(), thumb.Bounds().Dy())
			}
		})
	}
}

func TestThumbnail_PreservesUniformColor(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	fill := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.SetRGBA(x, y, fill)
		}
	}

	thumb := Thumbnail(src, 50)
	got := thumb.RGBAAt(25, 12)
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if diff(got.R, fill.R) > 1 || diff(got.G, fill.G) > 1 || diff(got.B, fill.B) > 1 {
		t.Errorf("Expected %v after downscale, got %v", fill, got)
	}
}
