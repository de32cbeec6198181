package geometry

import (
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

// Hittable interface for objects that can be hit by rays.
// Hit returns the nearest intersection with t strictly inside rayT.
type Hittable interface {
	Hit(ray core.Ray, rayT core.Interval) (*material.HitRecord, bool)
}
