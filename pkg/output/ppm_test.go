package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

var errClosed = errors.New("stream closed")

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errClosed }

func TestPPMSink_Text(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPPMSink(&buf, false)

	if err := sink.WriteHeader(2, 1, MaxChannelValue); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	pixels := []core.RGB{{R: 255, G: 0, B: 0}, {R: 12, G: 34, B: 56}}
	for _, p := range pixels {
		if err := sink.WritePixel(p); err != nil {
			t.Fatalf("WritePixel failed: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	expected := "P3\n2 1\n255\n255 0 0\n12 34 56\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestPPMSink_Binary(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPPMSink(&buf, true)

	if err := sink.WriteHeader(1, 2, MaxChannelValue); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	sink.WritePixel(core.RGB{R: 1, G: 2, B: 3})
	sink.WritePixel(core.RGB{R: 250, G: 251, B: 252})
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	expected := append([]byte("P6\n1 2\n255\n"), 1, 2, 3, 250, 251, 252)
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("Expected %v, got %v", expected, buf.Bytes())
	}
}

func TestPPMSink_WriteFailurePropagates(t *testing.T) {
	sink := NewPPMSink(failingWriter{}, false)

	// Buffered writes succeed; the failure surfaces on flush
	sink.WriteHeader(1, 1, MaxChannelValue)
	sink.WritePixel(core.RGB{})

	err := sink.Flush()
	if err == nil {
		t.Fatal("Expected flush error from closed stream")
	}
	if !errors.Is(err, errClosed) {
		t.Errorf("Expected wrapped errClosed, got %v", err)
	}
}
