package scene

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// NewCoverScene creates a field of small random spheres around three large
// ones. The layout is a pure function of seed.
func NewCoverScene(seed int64) *Scene {
	s := New("cover")
	s.Description = "Hundreds of random small spheres around three large ones"
	s.CameraConfig.AspectRatio = 16.0 / 9.0
	s.CameraConfig.ImageWidth = 1200
	s.CameraConfig.SamplesPerPixel = 500
	s.CameraConfig.MaxDepth = 50
	s.CameraConfig.VFov = 20
	s.CameraConfig.LookFrom = core.NewVec3(13, 2, 3)
	s.CameraConfig.LookAt = core.NewVec3(0, 0, 0)
	s.CameraConfig.VUp = core.NewVec3(0, 1, 0)
	s.CameraConfig.DefocusAngle = 0.6
	s.CameraConfig.FocusDistance = 10.0

	ground := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	s.Add(geometry.NewSphere(core.NewVec3(0, -1000, 0), 1000, ground))

	sampler := core.NewSeededSampler(seed)
	clearing := core.NewVec3(4, 0.2, 0)

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := sampler.Get1D()
			center := core.NewVec3(float64(a)+0.9*sampler.Get1D(), 0.2, float64(b)+0.9*sampler.Get1D())

			// Keep the space in front of the large metal sphere clear
			if center.Subtract(clearing).Length() <= 0.9 {
				continue
			}

			var sphereMaterial material.Material
			switch {
			case chooseMat < 0.8:
				albedo := sampler.Get3D().MultiplyVec(sampler.Get3D())
				sphereMaterial = material.NewLambertian(albedo)
			case chooseMat < 0.95:
				albedo := core.RandomVec3Range(sampler, 0.5, 1)
				fuzz := core.RandomRange(sampler, 0, 0.5)
				sphereMaterial = material.NewMetal(albedo, fuzz)
			default:
				sphereMaterial = material.NewDielectric(1.5)
			}
			s.Add(geometry.NewSphere(center, 0.2, sphereMaterial))
		}
	}

	s.Add(
		geometry.NewSphere(core.NewVec3(0, 1, 0), 1.0, material.NewDielectric(1.5)),
		geometry.NewSphere(core.NewVec3(-4, 1, 0), 1.0, material.NewLambertian(core.NewVec3(0.4, 0.2, 0.1))),
		geometry.NewSphere(core.NewVec3(4, 1, 0), 1.0, material.NewMetal(core.NewVec3(0.7, 0.6, 0.5), 0.0)),
	)

	return s
}
