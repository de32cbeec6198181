package core

import (
	"math"
	"math/rand"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSeededSampler creates a sampler backed by a fresh generator with the given seed
func NewSeededSampler(seed int64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewSource(seed)))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// RandomRange returns a random float64 in [minVal, maxVal)
func RandomRange(sampler Sampler, minVal, maxVal float64) float64 {
	return minVal + (maxVal-minVal)*sampler.Get1D()
}

// RandomVec3Range returns a vector with each component uniform in [minVal, maxVal)
func RandomVec3Range(sampler Sampler, minVal, maxVal float64) Vec3 {
	u := sampler.Get3D()
	span := maxVal - minVal
	return NewVec3(minVal+span*u.X, minVal+span*u.Y, minVal+span*u.Z)
}

// SampleSquare returns an offset uniform in the [-0.5, 0.5]² unit square (Z = 0)
func SampleSquare(sampler Sampler) Vec3 {
	u := sampler.Get2D()
	return NewVec3(u.X-0.5, u.Y-0.5, 0)
}

// RandomInUnitSphere generates a random point strictly inside the unit sphere by rejection
func RandomInUnitSphere(sampler Sampler) Vec3 {
	for {
		p := RandomVec3Range(sampler, -1, 1)
		if p.LengthSquared() < 1 {
			return p
		}
	}
}

// RandomUnitVector generates a direction uniformly distributed on the unit sphere.
// Points too close to the origin are rejected so normalization cannot underflow.
func RandomUnitVector(sampler Sampler) Vec3 {
	for {
		p := RandomVec3Range(sampler, -1, 1)
		lensq := p.LengthSquared()
		if 1e-160 < lensq && lensq <= 1 {
			return p.Divide(math.Sqrt(lensq))
		}
	}
}

// RandomInUnitDisk generates a random point in the unit disk (for depth of field).
// Draws x,y uniformly in [-1,1]² until x²+y² < 1.
func RandomInUnitDisk(sampler Sampler) Vec3 {
	for {
		u := sampler.Get2D()
		p := NewVec3(2*u.X-1, 2*u.Y-1, 0)
		if p.LengthSquared() < 1 {
			return p
		}
	}
}
