package mathx

import "testing"

func TestFloorDivMod(t *testing.T) {
	cases := []struct {
		a, b     int
		div, mod int
	}{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{17, 16, 1, 1},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
		{-31, 16, -2, 1},
		{-32, 16, -2, 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.div {
			t.Fatalf("FloorDiv(%d,%d)=%d want=%d", c.a, c.b, got, c.div)
		}
		if got := Mod(c.a, c.b); got != c.mod {
			t.Fatalf("Mod(%d,%d)=%d want=%d", c.a, c.b, got, c.mod)
		}
	}
}

func TestChebyshev(t *testing.T) {
	if got := Chebyshev(0, 0, 0, 0, 0, 0); got != 0 {
		t.Fatalf("zero distance: got=%d", got)
	}
	if got := Chebyshev(1, -2, 3, -1, 1, 3); got != 3 {
		t.Fatalf("Chebyshev=%d want=3", got)
	}
	if got := Chebyshev(-5, 0, 0, -1, 0, 0); got != 4 {
		t.Fatalf("Chebyshev=%d want=4", got)
	}
}

func TestHash2Deterministic(t *testing.T) {
	a := Hash2(0, -3, 7)
	b := Hash2(0, -3, 7)
	if a != b {
		t.Fatalf("Hash2 not deterministic: %x vs %x", a, b)
	}
	if Hash2(0, -3, 7) == Hash2(1, -3, 7) {
		t.Fatalf("Hash2 ignores seed")
	}
	if Hash2(0, -3, 7) == Hash2(0, 7, -3) {
		t.Fatalf("Hash2 symmetric in x/z")
	}
}
