package terrain

import "math"

// HeightField maps world (x, z) to a terrain height in world-y voxels.
// Pure and deterministic for a given seed; the result may be negative
// or exceed any single chunk's vertical span, so grid fills clamp.
type HeightField struct {
	noise     *Noise
	frequency float64
	amplitude float64
	offset    float64
}

func NewHeightField(seed int64, frequency, amplitude, offset float64) *HeightField {
	return &HeightField{
		noise:     NewNoise(seed),
		frequency: frequency,
		amplitude: amplitude,
		offset:    offset,
	}
}

// Height returns the terrain height at the world column (x, z): voxels
// with world y below it are solid.
func (f *HeightField) Height(x, z int) int {
	v := f.noise.At(float64(x)*f.frequency, float64(z)*f.frequency)
	return int(math.Floor(v*f.amplitude + f.offset))
}
