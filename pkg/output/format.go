package output

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnknownFormat is returned for an output format name that is not supported
var ErrUnknownFormat = errors.New("unknown output format")

// Format identifies an image file format
type Format string

const (
	FormatPPM       Format = "ppm"
	FormatPPMBinary Format = "ppm-binary"
	FormatPNG       Format = "png"
	FormatWebP      Format = "webp"
	FormatTGA       Format = "tga"
	FormatBMP       Format = "bmp"
	FormatTIFF      Format = "tiff"
)

// Formats lists every supported format
var Formats = []Format{FormatPPM, FormatPPMBinary, FormatPNG, FormatWebP, FormatTGA, FormatBMP, FormatTIFF}

// ParseFormat converts a format name (case-insensitive) to a Format
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "tif":
		return FormatTIFF, nil
	case "p3":
		return FormatPPM, nil
	case "p6":
		return FormatPPMBinary, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	switch f {
	case FormatPPM, FormatPPMBinary:
		return ".ppm"
	default:
		return "." + string(f)
	}
}

// IsPPM reports whether the format is written pixel by pixel rather than from an image
func (f Format) IsPPM() bool {
	return f == FormatPPM || f == FormatPPMBinary
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPPM, FormatPPMBinary:
		err = encodePPM(w, img, format == FormatPPMBinary)
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	case FormatTGA:
		err = tga.Encode(w, img)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

// encodePPM replays an image through a PPMSink
func encodePPM(w io.Writer, img image.Image, binary bool) error {
	sink := NewPPMSink(w, binary)
	b := img.Bounds()
	if err := sink.WriteHeader(b.Dx(), b.Dy(), MaxChannelValue); err != nil {
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if err := sink.WritePixel(rgbFrom16(r, g, bl)); err != nil {
				return err
			}
		}
	}
	return sink.Flush()
}

// WriteFile encodes img into a newly created file at path
func WriteFile(path string, img image.Image, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes any supported non-PPM image file
func ReadFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, name, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return img, name, nil
}

// NewSink returns a PixelSink writing the given format to w.
// PPM formats stream directly; the others buffer into an image and encode on Flush.
func NewSink(w io.Writer, format Format) (PixelSink, error) {
	switch format {
	case FormatPPM, FormatPPMBinary:
		return NewPPMSink(w, format == FormatPPMBinary), nil
	case FormatPNG, FormatWebP, FormatTGA, FormatBMP, FormatTIFF:
		return NewImageSink(w, format), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
