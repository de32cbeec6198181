package renderer

import (
	"fmt"
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/output"
)

// ShadowAcneEpsilon is the lower bound of the hit interval for every traced ray
const ShadowAcneEpsilon = 0.001

// Sky gradient endpoints
var (
	horizonColor = core.NewVec3(1.0, 1.0, 1.0)
	zenithColor  = core.NewVec3(0.5, 0.7, 1.0)
)

// Raytracer handles the rendering process
type Raytracer struct {
	world        geometry.Hittable
	camera       *Camera
	gammaCorrect bool
	logger       core.Logger
}

// NewRaytracer creates a new raytracer with gamma correction enabled
func NewRaytracer(world geometry.Hittable, camera *Camera, logger core.Logger) *Raytracer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Raytracer{
		world:        world,
		camera:       camera,
		gammaCorrect: true,
		logger:       logger,
	}
}

// SetGammaCorrection toggles the gamma 2 transform applied before quantization
func (rt *Raytracer) SetGammaCorrection(enabled bool) {
	rt.gammaCorrect = enabled
}

// Camera returns the raytracer's camera
func (rt *Raytracer) Camera() *Camera {
	return rt.camera
}

// BackgroundColor returns the sky gradient for a ray that escapes the scene
func BackgroundColor(r core.Ray) core.Vec3 {
	unitDirection := r.Direction.Unit()
	a := 0.5 * (unitDirection.Y + 1.0)
	return horizonColor.Multiply(1.0 - a).Add(zenithColor.Multiply(a))
}

// RayColor returns the radiance carried back along r, following at most depth bounces
func (rt *Raytracer) RayColor(r core.Ray, depth int, sampler core.Sampler) core.Vec3 {
	// If we've exceeded the ray bounce limit, no more light is gathered
	if depth <= 0 {
		return core.Vec3{}
	}

	hit, isHit := rt.world.Hit(r, core.NewInterval(ShadowAcneEpsilon, math.Inf(1)))
	if !isHit {
		return BackgroundColor(r)
	}

	scatter, didScatter := hit.Material.Scatter(r, *hit, sampler)
	if !didScatter {
		return core.Vec3{} // Material absorbed the ray
	}

	return scatter.Attenuation.MultiplyVec(rt.RayColor(scatter.Scattered, depth-1, sampler))
}

// SamplePixel averages SamplesPerPixel jittered samples through pixel (i, j)
func (rt *Raytracer) SamplePixel(i, j int, sampler core.Sampler) core.Vec3 {
	pixelColor := core.Vec3{}
	for s := 0; s < rt.camera.SamplesPerPixel(); s++ {
		ray := rt.camera.GetRay(i, j, sampler)
		pixelColor = pixelColor.Add(rt.RayColor(ray, rt.camera.MaxDepth(), sampler))
	}
	return pixelColor.Multiply(rt.camera.pixelSamplesScale)
}

// ToRGB quantizes a linear color using the raytracer's gamma setting
func (rt *Raytracer) ToRGB(color core.Vec3) core.RGB {
	return core.ColorToRGB(color, rt.gammaCorrect)
}

// Render traces every pixel in scan order on the calling goroutine and writes
// it to sink. The first sink error aborts the render and is returned.
func (rt *Raytracer) Render(sink output.PixelSink, sampler core.Sampler) error {
	width, height := rt.camera.Width(), rt.camera.Height()

	if err := sink.WriteHeader(width, height, output.MaxChannelValue); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	for j := 0; j < height; j++ {
		rt.logger.Printf("Scanlines remaining: %d\n", height-j)
		for i := 0; i < width; i++ {
			if err := sink.WritePixel(rt.ToRGB(rt.SamplePixel(i, j, sampler))); err != nil {
				return fmt.Errorf("render: pixel (%d,%d): %w", i, j, err)
			}
		}
	}

	if err := sink.Flush(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	rt.logger.Printf("Done.\n")
	return nil
}
