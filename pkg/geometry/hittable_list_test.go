package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/material"
)

func TestHittableList_Empty(t *testing.T) {
	list := NewHittableList()
	ray := core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, -1))

	if hit, isHit := list.Hit(ray, testRange); isHit || hit != nil {
		t.Errorf("Empty list should never be hit, got %v", hit)
	}
}

func TestHittableList_ClosestWins(t *testing.T) {
	near := material.NewLambertian(core.NewVec3(1, 0, 0))
	far := material.NewLambertian(core.NewVec3(0, 0, 1))

	tests := []struct {
		name    string
		objects []Hittable
	}{
		{"near first", []Hittable{
			NewSphere(core.NewVec3(0, 0, -2), 0.5, near),
			NewSphere(core.NewVec3(0, 0, -5), 0.5, far),
		}},
		{"far first", []Hittable{
			NewSphere(core.NewVec3(0, 0, -5), 0.5, far),
			NewSphere(core.NewVec3(0, 0, -2), 0.5, near),
		}},
	}

	ray := core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, -1))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := NewHittableList(tt.objects...)
			hit, isHit := list.Hit(ray, testRange)
			if !isHit {
				t.Fatal("Expected hit, but got miss")
			}
			if math.Abs(hit.T-1.5) > 1e-9 {
				t.Errorf("Expected t=1.5, got t=%f", hit.T)
			}
			if hit.Material != near {
				t.Error("Expected the nearer sphere's material")
			}
		})
	}
}

func TestHittableList_AddAndClear(t *testing.T) {
	list := NewHittableList()
	list.Add(NewSphere(core.NewVec3(0, 0, -1), 0.5, nil))
	list.Add(NewSphere(core.NewVec3(0, -100.5, -1), 100, nil))

	if list.Len() != 2 {
		t.Fatalf("Expected 2 objects, got %d", list.Len())
	}

	list.Clear()
	if list.Len() != 0 {
		t.Errorf("Expected empty list after Clear, got %d", list.Len())
	}
}

// naiveHit tests every object over the full interval and keeps the minimum t
func naiveHit(objects []Hittable, ray core.Ray, rayT core.Interval) (*material.HitRecord, bool) {
	var best *material.HitRecord
	for _, object := range objects {
		if hit, ok := object.Hit(ray, rayT); ok && (best == nil || hit.T < best.T) {
			best = hit
		}
	}
	return best, best != nil
}

func TestHittableList_MatchesNaiveMinimum(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	sampler := core.NewRandomSampler(random)

	var objects []Hittable
	for i := 0; i < 40; i++ {
		center := core.RandomVec3Range(sampler, -10, 10)
		objects = append(objects, NewSphere(center, core.RandomRange(sampler, 0.2, 2.0), nil))
	}
	list := NewHittableList(objects...)

	rayT := core.NewInterval(0.001, math.Inf(1))
	hits := 0
	for i := 0; i < 2000; i++ {
		origin := core.RandomVec3Range(sampler, -12, 12)
		direction := core.RandomUnitVector(sampler)
		ray := core.NewRay(origin, direction)

		got, gotHit := list.Hit(ray, rayT)
		want, wantHit := naiveHit(objects, ray, rayT)

		if gotHit != wantHit {
			t.Fatalf("ray %d: list hit=%t, naive hit=%t", i, gotHit, wantHit)
		}
		if !gotHit {
			continue
		}
		hits++
		if got.T != want.T {
			t.Fatalf("ray %d: list t=%f, naive t=%f", i, got.T, want.T)
		}
	}

	if hits == 0 {
		t.Fatal("Test setup error: no rays hit any sphere")
	}
}
