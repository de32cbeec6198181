package output

import (
	"errors"
	"image"
	"image/color"
	"io"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// ImageSink collects pixels into an RGBA image.
// When constructed with a writer, Flush encodes the image to it.
type ImageSink struct {
	w      io.Writer
	format Format
	img    *image.RGBA
	next   int
}

// NewImageSink creates a sink that encodes to w in format on Flush.
// A nil writer only collects the image.
func NewImageSink(w io.Writer, format Format) *ImageSink {
	return &ImageSink{w: w, format: format}
}

// WriteHeader allocates the image
func (s *ImageSink) WriteHeader(width, height, maxValue int) error {
	if width <= 0 || height <= 0 {
		return errors.New("image sink: non-positive dimensions")
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	s.next = 0
	return nil
}

// WritePixel stores the next pixel in scan order
func (s *ImageSink) WritePixel(c core.RGB) error {
	if s.img == nil {
		return errors.New("image sink: pixel written before header")
	}
	width := s.img.Rect.Dx()
	if s.next >= width*s.img.Rect.Dy() {
		return errors.New("image sink: too many pixels")
	}
	s.img.SetRGBA(s.next%width, s.next/width, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
	s.next++
	return nil
}

// Flush encodes the completed image if a writer was given
func (s *ImageSink) Flush() error {
	if s.img == nil {
		return errors.New("image sink: flush before header")
	}
	if s.w == nil {
		return nil
	}
	return Encode(s.w, s.img, s.format)
}

// Image returns the collected image
func (s *ImageSink) Image() *image.RGBA {
	return s.img
}

// ToRGBA converts a quantized color to an opaque color.RGBA
func ToRGBA(c core.RGB) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func rgbFrom16(r, g, b uint32) core.RGB {
	return core.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}
