package terrain

import (
	"math"

	"voxelstream.dev/internal/sim/mathx"
)

// Noise is 2D coherent gradient noise over a hashed integer lattice.
// Values are in [-1, 1] and exactly 0 at integer lattice points, which
// pins Height(0, 0) to the configured offset.
type Noise struct {
	seed int64
}

func NewNoise(seed int64) *Noise {
	return &Noise{seed: seed}
}

// Unit gradients: 4 axis-aligned, 4 diagonal.
var gradients = [8][2]float64{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{math.Sqrt2 / 2, math.Sqrt2 / 2},
	{-math.Sqrt2 / 2, math.Sqrt2 / 2},
	{math.Sqrt2 / 2, -math.Sqrt2 / 2},
	{-math.Sqrt2 / 2, -math.Sqrt2 / 2},
}

// At evaluates the noise at (x, z).
func (n *Noise) At(x, z float64) float64 {
	x0 := int(math.Floor(x))
	z0 := int(math.Floor(z))
	fx := x - float64(x0)
	fz := z - float64(z0)

	u := fade(fx)
	v := fade(fz)

	d00 := n.grad(x0, z0, fx, fz)
	d10 := n.grad(x0+1, z0, fx-1, fz)
	d01 := n.grad(x0, z0+1, fx, fz-1)
	d11 := n.grad(x0+1, z0+1, fx-1, fz-1)

	// Unit gradients bound the raw value by sqrt2/2; rescale to [-1, 1].
	return lerp(lerp(d00, d10, u), lerp(d01, d11, u), v) * math.Sqrt2
}

func (n *Noise) grad(xi, zi int, dx, dz float64) float64 {
	g := gradients[mathx.Hash2(n.seed, xi, zi)&7]
	return g[0]*dx + g[1]*dz
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
