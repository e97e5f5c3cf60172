package terrain

import (
	"math"
	"testing"
)

func TestNoiseDeterministic(t *testing.T) {
	a := NewNoise(0)
	b := NewNoise(0)
	pts := [][2]float64{{0.3, 0.7}, {-1.25, 4.5}, {100.01, -37.99}, {0.5, 0.5}}
	for _, p := range pts {
		v1 := a.At(p[0], p[1])
		v2 := a.At(p[0], p[1])
		if v1 != v2 {
			t.Fatalf("At(%v) not stable: %v vs %v", p, v1, v2)
		}
		if v3 := b.At(p[0], p[1]); v3 != v1 {
			t.Fatalf("At(%v) differs across instances with same seed: %v vs %v", p, v1, v3)
		}
	}

	c := NewNoise(1)
	diff := false
	for _, p := range pts {
		if c.At(p[0], p[1]) != a.At(p[0], p[1]) {
			diff = true
			break
		}
	}
	if !diff {
		t.Fatalf("seed has no effect on noise output")
	}
}

func TestNoiseZeroAtLatticePoints(t *testing.T) {
	n := NewNoise(0)
	for x := -3; x <= 3; x++ {
		for z := -3; z <= 3; z++ {
			if v := n.At(float64(x), float64(z)); v != 0 {
				t.Fatalf("At(%d,%d)=%v want=0", x, z, v)
			}
		}
	}
}

func TestNoiseRange(t *testing.T) {
	n := NewNoise(0)
	maxAbs := 0.0
	for i := 0; i < 200; i++ {
		for j := 0; j < 200; j++ {
			v := n.At(float64(i)*0.173, float64(j)*0.311)
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs > 1.0+1e-9 {
		t.Fatalf("noise escaped [-1,1]: max |v| = %v", maxAbs)
	}
	if maxAbs < 0.1 {
		t.Fatalf("noise looks degenerate: max |v| = %v", maxAbs)
	}
}
