package scene

import (
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// oklchToRGB converts OKLCH color values to RGB
// L: lightness (0-1), C: chroma (0-0.4+), H: hue (0-360 degrees)
func oklchToRGB(l, c, h float64) core.Vec3 {
	hRad := core.DegreesToRadians(h)

	// OKLCH to OKLAB
	a := c * math.Cos(hRad)
	b := c * math.Sin(hRad)

	// OKLAB to LMS
	lc := l + 0.3963377774*a + 0.2158037573*b
	mc := l - 0.1055613458*a - 0.0638541728*b
	sc := l - 0.0894841775*a - 1.2914855480*b

	lc = lc * lc * lc
	mc = mc * mc * mc
	sc = sc * sc * sc

	// LMS to linear RGB
	rgb := core.NewVec3(
		+4.0767416621*lc-3.3077115913*mc+0.2309699292*sc,
		-1.2684380046*lc+2.6097574011*mc-0.3413193965*sc,
		-0.0041960863*lc-0.7034186147*mc+1.7076147010*sc,
	)
	return rgb.Clamp(0, 1)
}

// NewSphereGridScene creates a grid of rainbow metal spheres on a ground sphere
func NewSphereGridScene(gridSize int) *Scene {
	if gridSize < 2 {
		gridSize = 2
	}

	s := New("spheregrid")
	s.Description = "Grid of metal spheres with hue varying along one axis and chroma along the other"
	s.CameraConfig.AspectRatio = 16.0 / 9.0
	s.CameraConfig.ImageWidth = 800
	s.CameraConfig.SamplesPerPixel = 100
	s.CameraConfig.MaxDepth = 40
	s.CameraConfig.VFov = 40
	s.CameraConfig.LookFrom = core.NewVec3(4.5, 6, 18)
	s.CameraConfig.LookAt = core.NewVec3(4.5, 0.8, 4.5)
	s.CameraConfig.VUp = core.NewVec3(0, 1, 0)
	s.CameraConfig.DefocusAngle = 0.2
	s.CameraConfig.FocusDistance = s.CameraConfig.LookFrom.Subtract(s.CameraConfig.LookAt).Length()

	// A huge sphere stands in for a ground plane; its top touches y=0
	ground := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	s.Add(geometry.NewSphere(core.NewVec3(4.5, -1000, 4.5), 1000, ground))

	// Fit the grid into roughly 9x9 units regardless of its size
	targetArea := 9.0
	spacing := targetArea / float64(gridSize-1)
	sphereRadius := math.Max(0.02, math.Min(0.35, spacing*0.35))

	baseLightness := 0.65
	minChroma := 0.05
	maxChroma := 0.25

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			x := float64(i)*spacing - targetArea/2.0 + 4.5
			z := float64(j)*spacing - targetArea/2.0 + 4.5
			position := core.NewVec3(x, sphereRadius, z)

			hue := (float64(i) / float64(gridSize-1)) * 360.0
			chroma := minChroma + (float64(j)/float64(gridSize-1))*(maxChroma-minChroma)
			lightness := baseLightness + 0.1*math.Sin(float64(i+j)*0.5)

			fuzz := 0.05 + 0.1*float64((i+j)%3)/2.0
			metal := material.NewMetal(oklchToRGB(lightness, chroma, hue), fuzz)
			s.Add(geometry.NewSphere(position, sphereRadius, metal))
		}
	}

	return s
}
