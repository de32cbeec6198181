package output

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
)

// MaxChannelValue is the largest value a quantized channel can take
const MaxChannelValue = 255

// PixelSink receives a rendered image one pixel at a time.
// WriteHeader is called once before any pixel; pixels then arrive in
// scan order, left to right and top to bottom. Flush completes the image.
type PixelSink interface {
	WriteHeader(width, height, maxValue int) error
	WritePixel(c core.RGB) error
	Flush() error
}
