package renderer

import (
	"image"
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// AdaptiveConfig controls early termination of per-pixel sampling.
// A zero Threshold disables adaptive sampling.
type AdaptiveConfig struct {
	MinSamples float64 // Minimum fraction of the target samples before stopping
	Threshold  float64 // Relative luminance error below which a pixel stops
}

// TileRenderer renders rectangular regions of the image into shared pixel statistics
type TileRenderer struct {
	raytracer *Raytracer
	adaptive  AdaptiveConfig
}

// NewTileRenderer creates a tile renderer over a raytracer
func NewTileRenderer(raytracer *Raytracer, adaptive AdaptiveConfig) *TileRenderer {
	return &TileRenderer{
		raytracer: raytracer,
		adaptive:  adaptive,
	}
}

// RenderTileBounds samples every pixel within bounds up to targetSamples total samples
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, pixelStats [][]PixelStats, sampler core.Sampler, targetSamples int) RenderStats {
	stats := tr.initRenderStatsForBounds(bounds, targetSamples)

	for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
		for i := bounds.Min.X; i < bounds.Max.X; i++ {
			samplesUsed := tr.adaptiveSamplePixel(i, j, &pixelStats[j][i], sampler, targetSamples)
			tr.updateStats(&stats, samplesUsed)
		}
	}

	tr.finalizeStats(&stats)
	return stats
}

// adaptiveSamplePixel takes samples until convergence or maxSamples
func (tr *TileRenderer) adaptiveSamplePixel(i, j int, ps *PixelStats, sampler core.Sampler, maxSamples int) int {
	initialSampleCount := ps.SampleCount
	camera := tr.raytracer.camera

	for ps.SampleCount < maxSamples && !tr.shouldStopSampling(ps, maxSamples) {
		ray := camera.GetRay(i, j, sampler)
		ps.AddSample(tr.raytracer.RayColor(ray, camera.MaxDepth(), sampler))
	}

	return ps.SampleCount - initialSampleCount
}

// shouldStopSampling determines if adaptive sampling should stop based on perceptual relative error
func (tr *TileRenderer) shouldStopSampling(ps *PixelStats, maxSamples int) bool {
	if tr.adaptive.Threshold <= 0 {
		return false
	}

	// Minimum samples as a fraction of max samples, but at least 1
	minSamples := max(1, int(float64(maxSamples)*tr.adaptive.MinSamples))
	if ps.SampleCount < minSamples {
		return false
	}

	mean := ps.LuminanceAccum / float64(ps.SampleCount)
	meanSq := ps.LuminanceSqAccum / float64(ps.SampleCount)
	variance := math.Max(0, meanSq-mean*mean)

	// Avoid division by zero for black pixels
	if mean <= 1e-8 {
		return variance < 1e-6
	}

	// Coefficient of variation
	relativeError := math.Sqrt(variance) / mean
	return relativeError < tr.adaptive.Threshold
}

func (tr *TileRenderer) initRenderStatsForBounds(bounds image.Rectangle, maxSamples int) RenderStats {
	return RenderStats{
		TotalPixels:    bounds.Dx() * bounds.Dy(),
		MaxSamples:     maxSamples,
		MinSamples:     maxSamples, // Start with max, will be reduced
		MaxSamplesUsed: 0,
	}
}

func (tr *TileRenderer) updateStats(stats *RenderStats, samplesUsed int) {
	stats.TotalSamples += samplesUsed
	stats.MinSamples = min(stats.MinSamples, samplesUsed)
	stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, samplesUsed)
}

func (tr *TileRenderer) finalizeStats(stats *RenderStats) {
	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
}
