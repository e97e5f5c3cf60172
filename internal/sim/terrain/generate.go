package terrain

// Generator produces a fully populated Grid for a chunk key. The store
// calls it on a miss; implementations must be pure so that repeated
// generation of the same key is bit-identical.
type Generator interface {
	Generate(key ChunkKey) *Grid
}

// HeightGen fills grids from a HeightField: one Height evaluation per
// (lx, lz) column, reused across the column's y run.
type HeightGen struct {
	Field *HeightField
}

func (g HeightGen) Generate(key ChunkKey) *Grid {
	return GenerateGrid(g.Field, key)
}

// GenerateGrid populates one chunk's occupancy: voxel (lx, ly, lz) is
// solid iff key.CY*ChunkSize + ly < Height(worldX, worldZ).
func GenerateGrid(f *HeightField, key ChunkKey) *Grid {
	grid := newGrid()
	baseX := key.CX * ChunkSize
	baseY := key.CY * ChunkSize
	baseZ := key.CZ * ChunkSize
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			h := f.Height(baseX+lx, baseZ+lz)
			n := h - baseY
			if n <= 0 {
				continue
			}
			if n > ChunkSize {
				n = ChunkSize
			}
			for ly := 0; ly < n; ly++ {
				grid.cells[gridIndex(lx, ly, lz)] = true
			}
		}
	}
	grid.seal()
	return grid
}
