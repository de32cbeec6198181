package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

var statsMagic = [4]byte{'S', 'P', 'H', 'S'}

const (
	statsHeaderSize = 16
	// three color channels, luminance, luminance squared, sample count
	pixelRecordSize = 5*8 + 4
)

// writeStats encodes the accumulator grid as little-endian records inside a zstd stream.
// Floats are stored bit-exact so a resumed render continues from identical sums.
func writeStats(w io.Writer, stats [][]renderer.PixelStats) error {
	height := len(stats)
	width := 0
	if height > 0 {
		width = len(stats[0])
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	header := make([]byte, statsHeaderSize)
	copy(header[0:4], statsMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], ManifestVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(width))
	binary.LittleEndian.PutUint32(header[12:16], uint32(height))
	if _, err := enc.Write(header); err != nil {
		enc.Close()
		return err
	}

	row := make([]byte, width*pixelRecordSize)
	for y, line := range stats {
		if len(line) != width {
			enc.Close()
			return fmt.Errorf("row %d has %d pixels, expected %d", y, len(line), width)
		}
		offset := 0
		for _, ps := range line {
			for _, v := range []float64{ps.ColorAccum.X, ps.ColorAccum.Y, ps.ColorAccum.Z, ps.LuminanceAccum, ps.LuminanceSqAccum} {
				binary.LittleEndian.PutUint64(row[offset:offset+8], math.Float64bits(v))
				offset += 8
			}
			binary.LittleEndian.PutUint32(row[offset:offset+4], uint32(ps.SampleCount))
			offset += 4
		}
		if _, err := enc.Write(row); err != nil {
			enc.Close()
			return err
		}
	}
	return enc.Close()
}

// readStats decodes a grid written by writeStats.
func readStats(r io.Reader) ([][]renderer.PixelStats, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	header := make([]byte, statsHeaderSize)
	if _, err := io.ReadFull(dec, header); err != nil {
		return nil, fmt.Errorf("read stats header: %w", err)
	}
	if [4]byte(header[0:4]) != statsMagic {
		return nil, fmt.Errorf("not a stats file")
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != ManifestVersion {
		return nil, fmt.Errorf("unsupported stats version %d", version)
	}
	width := int(binary.LittleEndian.Uint32(header[8:12]))
	height := int(binary.LittleEndian.Uint32(header[12:16]))

	stats := renderer.NewPixelStatsGrid(width, height)
	row := make([]byte, width*pixelRecordSize)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(dec, row); err != nil {
			return nil, fmt.Errorf("stats row %d truncated: %w", y, err)
		}
		offset := 0
		next := func() float64 {
			v := math.Float64frombits(binary.LittleEndian.Uint64(row[offset : offset+8]))
			offset += 8
			return v
		}
		for x := 0; x < width; x++ {
			ps := &stats[y][x]
			ps.ColorAccum = core.NewVec3(next(), next(), next())
			ps.LuminanceAccum = next()
			ps.LuminanceSqAccum = next()
			ps.SampleCount = int(binary.LittleEndian.Uint32(row[offset : offset+4]))
			offset += 4
		}
	}
	return stats, nil
}
