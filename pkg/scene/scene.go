package scene

import (
	"fmt"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// Scene contains all the elements needed for rendering
type Scene struct {
	Name         string
	Description  string
	World        *geometry.HittableList
	CameraConfig renderer.CameraConfig
}

// New creates an empty scene with the default camera
func New(name string) *Scene {
	return &Scene{
		Name:         name,
		World:        geometry.NewHittableList(),
		CameraConfig: renderer.DefaultCameraConfig(),
	}
}

// Add appends spheres to the scene's world
func (s *Scene) Add(spheres ...*geometry.Sphere) {
	for _, sphere := range spheres {
		s.World.Add(sphere)
	}
}

// SphereCount returns the number of objects in the scene
func (s *Scene) SphereCount() int {
	return s.World.Len()
}

// NewRaytracer builds the camera and a raytracer over the scene
func (s *Scene) NewRaytracer(logger core.Logger) (*renderer.Raytracer, error) {
	camera, err := renderer.NewCamera(s.CameraConfig)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", s.Name, err)
	}
	return renderer.NewRaytracer(s.World, camera, logger), nil
}

// CameraOverrides holds optional camera settings; zero values leave the scene's choice alone
type CameraOverrides struct {
	ImageWidth      int
	SamplesPerPixel int
	MaxDepth        *int // nil keeps the scene depth; 0 renders black
}

// ApplyOverrides merges positive width and sample overrides and any set depth into the camera config
func (s *Scene) ApplyOverrides(o CameraOverrides) {
	if o.ImageWidth > 0 {
		s.CameraConfig.ImageWidth = o.ImageWidth
	}
	if o.SamplesPerPixel > 0 {
		s.CameraConfig.SamplesPerPixel = o.SamplesPerPixel
	}
	if o.MaxDepth != nil {
		s.CameraConfig.MaxDepth = *o.MaxDepth
	}
}
