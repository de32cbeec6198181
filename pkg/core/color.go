package core

import "math"

// Intensity is the channel range accepted before quantization.
// The upper bound stays below 1 so a fully saturated channel maps to 255, never 256.
var Intensity = NewInterval(0.000, 0.999)

// LinearToGamma applies the gamma 2 transform; negative input maps to 0
func LinearToGamma(linear float64) float64 {
	if linear > 0 {
		return math.Sqrt(linear)
	}
	return 0
}

// RGB is a quantized 8-bit color
type RGB struct {
	R, G, B uint8
}

// ColorToRGB converts a linear color to 8-bit channels: optional gamma encoding,
// clamping to Intensity, then scaling by 256 and truncating.
func ColorToRGB(color Vec3, gammaCorrect bool) RGB {
	r, g, b := color.X, color.Y, color.Z
	if gammaCorrect {
		r = LinearToGamma(r)
		g = LinearToGamma(g)
		b = LinearToGamma(b)
	}
	return RGB{
		R: quantize(r),
		G: quantize(g),
		B: quantize(b),
	}
}

func quantize(channel float64) uint8 {
	// NaN from a degenerate path would otherwise survive the clamp
	if math.IsNaN(channel) {
		return 0
	}
	return uint8(256 * Intensity.Clamp(channel))
}
