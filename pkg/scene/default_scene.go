package scene

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// addMaterialSpheres adds the three-material lineup on a yellow-green ground
func addMaterialSpheres(s *Scene) {
	ground := material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))
	center := material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))
	glass := material.NewDielectric(1.50)
	bubble := material.NewDielectric(1.00 / 1.50)
	gold := material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 1.0)

	s.Add(
		geometry.NewSphere(core.NewVec3(0.0, -100.5, -1.0), 100.0, ground),
		geometry.NewSphere(core.NewVec3(0.0, 0.0, -1.2), 0.5, center),
		geometry.NewSphere(core.NewVec3(-1.0, 0.0, -1.0), 0.5, glass),
		geometry.NewSphere(core.NewVec3(-1.0, 0.0, -1.0), 0.4, bubble), // Air bubble inside the glass
		geometry.NewSphere(core.NewVec3(1.0, 0.0, -1.0), 0.5, gold),
	)
}

// NewDefaultScene creates a diffuse, a glass and a metal sphere seen head-on
func NewDefaultScene() *Scene {
	s := New("default")
	s.Description = "Diffuse, hollow glass and fuzzy gold spheres on a ground sphere"
	s.CameraConfig.AspectRatio = 16.0 / 9.0
	s.CameraConfig.ImageWidth = 400
	s.CameraConfig.SamplesPerPixel = 100
	s.CameraConfig.MaxDepth = 50
	addMaterialSpheres(s)
	return s
}

// NewGlassScene views the same lineup from above and to the side with a narrow lens
func NewGlassScene() *Scene {
	s := NewDefaultScene()
	s.Name = "glass"
	s.Description = "The default lineup from a raised viewpoint with a narrow field of view"
	s.CameraConfig.VFov = 20
	s.CameraConfig.LookFrom = core.NewVec3(-2, 2, 1)
	s.CameraConfig.LookAt = core.NewVec3(0, 0, -1)
	s.CameraConfig.VUp = core.NewVec3(0, 1, 0)
	return s
}

// NewDefocusScene adds depth of field focused on the center sphere
func NewDefocusScene() *Scene {
	s := NewGlassScene()
	s.Name = "defocus"
	s.Description = "The raised lineup with a wide aperture focused on the center sphere"
	s.CameraConfig.DefocusAngle = 10.0
	s.CameraConfig.FocusDistance = 3.4
	return s
}
