package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// PPMSink writes a portable pixmap, either as P3 text or P6 binary
type PPMSink struct {
	w      *bufio.Writer
	binary bool
}

// NewPPMSink creates a PPM sink over w
func NewPPMSink(w io.Writer, binary bool) *PPMSink {
	return &PPMSink{w: bufio.NewWriter(w), binary: binary}
}

// WriteHeader writes the magic number, dimensions and max channel value
func (s *PPMSink) WriteHeader(width, height, maxValue int) error {
	magic := "P3"
	if s.binary {
		magic = "P6"
	}
	if _, err := fmt.Fprintf(s.w, "%s\n%d %d\n%d\n", magic, width, height, maxValue); err != nil {
		return fmt.Errorf("write ppm header: %w", err)
	}
	return nil
}

// WritePixel writes one pixel
func (s *PPMSink) WritePixel(c core.RGB) error {
	var err error
	if s.binary {
		_, err = s.w.Write([]byte{c.R, c.G, c.B})
	} else {
		_, err = fmt.Fprintf(s.w, "%d %d %d\n", c.R, c.G, c.B)
	}
	if err != nil {
		return fmt.Errorf("write ppm pixel: %w", err)
	}
	return nil
}

// Flush flushes buffered output
func (s *PPMSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush ppm: %w", err)
	}
	return nil
}
