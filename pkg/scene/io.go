package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/material"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// Material type names used in scene files
const (
	MaterialLambertian = "lambertian"
	MaterialMetal      = "metal"
	MaterialDielectric = "dielectric"
)

// Description is the on-disk form of a scene
type Description struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Group       string                `json:"group,omitempty"`
	Camera      renderer.CameraConfig `json:"camera"`
	Materials   []MaterialSpec        `json:"materials"`
	Spheres     []SphereSpec          `json:"spheres"`
}

// MaterialSpec describes one named material
type MaterialSpec struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Albedo          core.Vec3 `json:"albedo,omitempty"`
	Fuzz            float64   `json:"fuzz,omitempty"`
	RefractionIndex float64   `json:"refraction_index,omitempty"`
}

// SphereSpec places a sphere and refers to a material by id
type SphereSpec struct {
	Center   core.Vec3 `json:"center"`
	Radius   float64   `json:"radius"`
	Material string    `json:"material"`
}

// Load reads a scene description from a JSON file
func Load(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	desc := &Description{Camera: renderer.DefaultCameraConfig()}
	if err := json.NewDecoder(f).Decode(desc); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return desc, nil
}

// LoadFile reads and builds a scene in one step
func LoadFile(path string) (*Scene, error) {
	desc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return desc.Build()
}

// Save writes a scene description as indented JSON
func Save(path string, desc *Description) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scene: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(desc); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return nil
}

// Build turns the description into a renderable scene
func (d *Description) Build() (*Scene, error) {
	materials := make(map[string]material.Material, len(d.Materials))
	var errs []error
	for _, spec := range d.Materials {
		if _, dup := materials[spec.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate material id %q", spec.ID))
			continue
		}
		m, err := spec.build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		materials[spec.ID] = m
	}

	s := New(d.Name)
	s.Description = d.Description
	s.CameraConfig = d.Camera
	for i, spec := range d.Spheres {
		m, ok := materials[spec.Material]
		if !ok {
			errs = append(errs, fmt.Errorf("sphere %d: unknown material %q", i, spec.Material))
			continue
		}
		s.Add(geometry.NewSphere(spec.Center, spec.Radius, m))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build scene %q: %w", d.Name, err)
	}
	return s, nil
}

func (m MaterialSpec) build() (material.Material, error) {
	switch m.Type {
	case MaterialLambertian:
		return material.NewLambertian(m.Albedo), nil
	case MaterialMetal:
		return material.NewMetal(m.Albedo, m.Fuzz), nil
	case MaterialDielectric:
		if m.RefractionIndex <= 0 {
			return nil, fmt.Errorf("material %q: refraction index must be positive", m.ID)
		}
		return material.NewDielectric(m.RefractionIndex), nil
	default:
		return nil, fmt.Errorf("material %q: unknown type %q", m.ID, m.Type)
	}
}

// Describe converts a scene back into its on-disk form. Materials shared
// between spheres are written once.
func Describe(s *Scene) (*Description, error) {
	desc := &Description{
		Name:        s.Name,
		Description: s.Description,
		Camera:      s.CameraConfig,
	}

	ids := make(map[material.Material]string)
	for i, object := range s.World.Objects {
		sphere, ok := object.(*geometry.Sphere)
		if !ok {
			return nil, fmt.Errorf("describe scene: object %d is %T, not a sphere", i, object)
		}

		id, seen := ids[sphere.Material]
		if !seen {
			spec, err := describeMaterial(sphere.Material)
			if err != nil {
				return nil, fmt.Errorf("describe scene: object %d: %w", i, err)
			}
			id = fmt.Sprintf("m%d", len(desc.Materials))
			spec.ID = id
			ids[sphere.Material] = id
			desc.Materials = append(desc.Materials, spec)
		}

		desc.Spheres = append(desc.Spheres, SphereSpec{
			Center:   sphere.Center,
			Radius:   sphere.Radius,
			Material: id,
		})
	}
	return desc, nil
}

func describeMaterial(m material.Material) (MaterialSpec, error) {
	switch mat := m.(type) {
	case *material.Lambertian:
		return MaterialSpec{Type: MaterialLambertian, Albedo: mat.Albedo}, nil
	case *material.Metal:
		return MaterialSpec{Type: MaterialMetal, Albedo: mat.Albedo, Fuzz: mat.Fuzzness}, nil
	case *material.Dielectric:
		return MaterialSpec{Type: MaterialDielectric, RefractionIndex: mat.RefractiveIndex}, nil
	default:
		return MaterialSpec{}, fmt.Errorf("unsupported material %T", m)
	}
}
