package core

import (
	"math"
	"testing"
)

func TestInterval_ContainsAndSurrounds(t *testing.T) {
	i := NewInterval(0, 1)

	tests := []struct {
		x         float64
		contains  bool
		surrounds bool
	}{
		{-0.1, false, false},
		{0, true, false},
		{0.5, true, true},
		{1, true, false},
		{1.1, false, false},
	}

	for _, tt := range tests {
		if got := i.Contains(tt.x); got != tt.contains {
			t.Errorf("Contains(%f) = %t, want %t", tt.x, got, tt.contains)
		}
		if got := i.Surrounds(tt.x); got != tt.surrounds {
			t.Errorf("Surrounds(%f) = %t, want %t", tt.x, got, tt.surrounds)
		}
	}
}

func TestInterval_EmptyAndUniverse(t *testing.T) {
	empty := EmptyInterval()
	universe := UniverseInterval()

	for _, x := range []float64{math.Inf(-1), -1e300, 0, 1e300, math.Inf(1)} {
		if empty.Contains(x) || empty.Surrounds(x) {
			t.Errorf("Empty interval should not contain %f", x)
		}
		if !universe.Contains(x) {
			t.Errorf("Universe should contain %f", x)
		}
	}
	if empty.Size() >= 0 {
		t.Errorf("Empty interval size should be negative, got %f", empty.Size())
	}
}

func TestInterval_Clamp(t *testing.T) {
	i := NewInterval(0, 0.999)
	tests := []struct{ in, out float64 }{
		{-0.2, 0},
		{0.5, 0.5},
		{1.5, 0.999},
	}
	for _, tt := range tests {
		if got := i.Clamp(tt.in); got != tt.out {
			t.Errorf("Clamp(%f) = %f, want %f", tt.in, got, tt.out)
		}
	}
}
