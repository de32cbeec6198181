package renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

// CameraConfig contains the user-tunable camera parameters
type CameraConfig struct {
	AspectRatio     float64   `json:"aspect_ratio"`      // Ratio of image width over height
	ImageWidth      int       `json:"image_width"`       // Rendered image width in pixels
	SamplesPerPixel int       `json:"samples_per_pixel"` // Random samples per pixel
	MaxDepth        int       `json:"max_depth"`         // Maximum ray bounces into the scene
	VFov            float64   `json:"vfov"`              // Vertical field of view in degrees
	LookFrom        core.Vec3 `json:"look_from"`         // Point the camera is looking from
	LookAt          core.Vec3 `json:"look_at"`           // Point the camera is looking at
	VUp             core.Vec3 `json:"vup"`               // Camera-relative up direction
	DefocusAngle    float64   `json:"defocus_angle"`     // Variation angle of rays through each pixel, in degrees
	FocusDistance   float64   `json:"focus_distance"`    // Distance from LookFrom to the plane of perfect focus
}

// DefaultCameraConfig returns the reference camera parameters
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		AspectRatio:     1.0,
		ImageWidth:      100,
		SamplesPerPixel: 10,
		MaxDepth:        10,
		VFov:            90,
		LookFrom:        core.NewVec3(0, 0, 0),
		LookAt:          core.NewVec3(0, 0, -1),
		VUp:             core.NewVec3(0, 1, 0),
		DefocusAngle:    0,
		FocusDistance:   10,
	}
}

// ImageHeight returns the image height implied by width and aspect ratio, at least 1
func (c CameraConfig) ImageHeight() int {
	return max(1, int(float64(c.ImageWidth)/c.AspectRatio))
}

// Validate reports every parameter that would make the camera basis degenerate
func (c CameraConfig) Validate() error {
	var problems []error
	if c.ImageWidth <= 0 {
		problems = append(problems, fmt.Errorf("image width must be positive, got %d", c.ImageWidth))
	}
	if !(c.AspectRatio > 0) || math.IsInf(c.AspectRatio, 0) {
		problems = append(problems, fmt.Errorf("aspect ratio must be positive and finite, got %g", c.AspectRatio))
	}
	if c.SamplesPerPixel <= 0 {
		problems = append(problems, fmt.Errorf("samples per pixel must be positive, got %d", c.SamplesPerPixel))
	}
	if c.MaxDepth < 0 {
		problems = append(problems, fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth))
	}
	if !(c.VFov > 0 && c.VFov < 180) {
		problems = append(problems, fmt.Errorf("vertical field of view must be in (0, 180), got %g", c.VFov))
	}
	if !(c.FocusDistance > 0) {
		problems = append(problems, fmt.Errorf("focus distance must be positive, got %g", c.FocusDistance))
	}

	view := c.LookFrom.Subtract(c.LookAt)
	if view.NearZero() {
		problems = append(problems, errors.New("look-from and look-at must differ"))
	} else if c.VUp.Cross(view).NearZero() {
		problems = append(problems, errors.New("up vector must not be parallel to the view direction"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid camera: %w", errors.Join(problems...))
	}
	return nil
}

// Camera generates rays for rendering. Derived state is computed once by NewCamera.
type Camera struct {
	config CameraConfig

	imageHeight       int
	center            core.Vec3 // Camera center
	pixel00Loc        core.Vec3 // Location of pixel 0, 0
	pixelDeltaU       core.Vec3 // Offset to pixel to the right
	pixelDeltaV       core.Vec3 // Offset to pixel below
	pixelSamplesScale float64   // Color scale factor for a sum of pixel samples
	u, v, w           core.Vec3 // Camera frame basis vectors
	defocusDiskU      core.Vec3 // Defocus disk horizontal radius
	defocusDiskV      core.Vec3 // Defocus disk vertical radius
}

// NewCamera validates the config and computes the viewport
func NewCamera(config CameraConfig) (*Camera, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Camera{config: config}
	c.initialize()
	return c, nil
}

func (c *Camera) initialize() {
	cfg := c.config
	c.imageHeight = cfg.ImageHeight()
	c.center = cfg.LookFrom
	c.pixelSamplesScale = 1.0 / float64(cfg.SamplesPerPixel)

	// Viewport dimensions at the focus plane
	theta := core.DegreesToRadians(cfg.VFov)
	h := math.Tan(theta / 2)
	viewportHeight := 2 * h * cfg.FocusDistance
	viewportWidth := viewportHeight * (float64(cfg.ImageWidth) / float64(c.imageHeight))

	// Orthonormal camera basis
	c.w = cfg.LookFrom.Subtract(cfg.LookAt).Unit()
	c.u = cfg.VUp.Cross(c.w).Unit()
	c.v = c.w.Cross(c.u)

	// Vectors across the horizontal and down the vertical viewport edges
	viewportU := c.u.Multiply(viewportWidth)
	viewportV := c.v.Multiply(-viewportHeight)

	c.pixelDeltaU = viewportU.Divide(float64(cfg.ImageWidth))
	c.pixelDeltaV = viewportV.Divide(float64(c.imageHeight))

	// Pixel centers start half a pixel in from the upper left corner
	viewportUpperLeft := c.center.
		Subtract(c.w.Multiply(cfg.FocusDistance)).
		Subtract(viewportU.Divide(2)).
		Subtract(viewportV.Divide(2))
	c.pixel00Loc = viewportUpperLeft.Add(c.pixelDeltaU.Add(c.pixelDeltaV).Multiply(0.5))

	defocusRadius := cfg.FocusDistance * math.Tan(core.DegreesToRadians(cfg.DefocusAngle/2))
	c.defocusDiskU = c.u.Multiply(defocusRadius)
	c.defocusDiskV = c.v.Multiply(defocusRadius)
}

// GetRay returns a ray through a random point in pixel (i, j), originating
// from the defocus disk when depth of field is enabled
func (c *Camera) GetRay(i, j int, sampler core.Sampler) core.Ray {
	offset := core.SampleSquare(sampler)
	pixelSample := c.pixel00Loc.
		Add(c.pixelDeltaU.Multiply(float64(i) + offset.X)).
		Add(c.pixelDeltaV.Multiply(float64(j) + offset.Y))

	rayOrigin := c.center
	if c.config.DefocusAngle > 0 {
		rayOrigin = c.defocusDiskSample(sampler)
	}

	return core.NewRay(rayOrigin, pixelSample.Subtract(rayOrigin))
}

// defocusDiskSample returns a random point on the camera defocus disk
func (c *Camera) defocusDiskSample(sampler core.Sampler) core.Vec3 {
	p := core.RandomInUnitDisk(sampler)
	return c.center.Add(c.defocusDiskU.Multiply(p.X)).Add(c.defocusDiskV.Multiply(p.Y))
}

// Config returns the parameters the camera was built from
func (c *Camera) Config() CameraConfig { return c.config }

// Width returns the image width in pixels
func (c *Camera) Width() int { return c.config.ImageWidth }

// Height returns the image height in pixels
func (c *Camera) Height() int { return c.imageHeight }

// SamplesPerPixel returns the configured samples per pixel
func (c *Camera) SamplesPerPixel() int { return c.config.SamplesPerPixel }

// MaxDepth returns the maximum bounce depth
func (c *Camera) MaxDepth() int { return c.config.MaxDepth }

// Center returns the camera center
func (c *Camera) Center() core.Vec3 { return c.center }

// PixelCenter returns the world position of the center of pixel (i, j)
func (c *Camera) PixelCenter(i, j int) core.Vec3 {
	return c.pixel00Loc.Add(c.pixelDeltaU.Multiply(float64(i))).Add(c.pixelDeltaV.Multiply(float64(j)))
}

// CenterRay returns the unjittered ray through the center of pixel (i, j) from the camera center
func (c *Camera) CenterRay(i, j int) core.Ray {
	return core.NewRay(c.center, c.PixelCenter(i, j).Subtract(c.center))
}
