// Package terrain holds the voxel data model: chunk keys, occupancy
// grids, the height field that shapes them, and the store that owns
// every resident grid.
package terrain

import "crypto/sha256"

// ChunkSize is the edge length of a chunk in voxels. Grid layout and
// the wire format both depend on it staying fixed.
const ChunkSize = 16

// ChunkKey identifies a chunk in chunk-space: world position
// floor-divided by ChunkSize per axis.
type ChunkKey struct {
	CX int
	CY int
	CZ int
}

// Less orders keys lexicographically (CX, CY, CZ).
func (k ChunkKey) Less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	if k.CY != o.CY {
		return k.CY < o.CY
	}
	return k.CZ < o.CZ
}

// Grid is one chunk's dense occupancy volume. Populated once at
// generation time and immutable afterwards.
type Grid struct {
	cells  []bool // len = ChunkSize^3
	digest [32]byte
}

func newGrid() *Grid {
	return &Grid{cells: make([]bool, ChunkSize*ChunkSize*ChunkSize)}
}

func gridIndex(x, y, z int) int {
	// x fastest, then y, then z
	return x + ChunkSize*(y+ChunkSize*z)
}

// At reports whether the voxel at local coordinates is solid. Local
// coordinates outside [0, ChunkSize) are a caller bug.
func (g *Grid) At(x, y, z int) bool {
	if uint(x) >= ChunkSize || uint(y) >= ChunkSize || uint(z) >= ChunkSize {
		panic("terrain: local coordinate out of range")
	}
	return g.cells[gridIndex(x, y, z)]
}

// Solids counts solid voxels.
func (g *Grid) Solids() int {
	n := 0
	for _, s := range g.cells {
		if s {
			n++
		}
	}
	return n
}

// Digest returns a stable hash of the occupancy volume, computed once
// at generation time.
func (g *Grid) Digest() [32]byte {
	return g.digest
}

func (g *Grid) seal() {
	h := sha256.New()
	b := make([]byte, len(g.cells))
	for i, s := range g.cells {
		if s {
			b[i] = 1
		}
	}
	h.Write(b)
	copy(g.digest[:], h.Sum(nil))
}

// Occupancy returns the raw solid bits in grid order (x fastest, then
// y, then z). The caller must not mutate the result; it aliases the
// grid's storage.
func (g *Grid) Occupancy() []bool {
	return g.cells
}

// GridFromOccupancy builds a sealed grid from raw solid bits in grid
// order, copying the input. It panics on a wrong length; callers
// decode wire payloads before reaching it.
func GridFromOccupancy(cells []bool) *Grid {
	if len(cells) != ChunkSize*ChunkSize*ChunkSize {
		panic("terrain: occupancy length mismatch")
	}
	g := newGrid()
	copy(g.cells, cells)
	g.seal()
	return g
}
