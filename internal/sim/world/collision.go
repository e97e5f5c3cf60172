package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream.dev/internal/sim/mathx"
	"voxelstream.dev/internal/sim/terrain"
)

// chunkAt maps a world-space point to its chunk key.
func chunkAt(p mgl64.Vec3) terrain.ChunkKey {
	return terrain.ChunkKey{
		CX: mathx.FloorDiv(int(math.Floor(p.X())), terrain.ChunkSize),
		CY: mathx.FloorDiv(int(math.Floor(p.Y())), terrain.ChunkSize),
		CZ: mathx.FloorDiv(int(math.Floor(p.Z())), terrain.ChunkSize),
	}
}

// IsSolid reports whether the voxel containing p is solid. Points in
// chunks that were never generated are passable: movement must not
// force generation, and a missing chunk is not an error.
func (w *World) IsSolid(p mgl64.Vec3) bool {
	return pointSolid(w.store, p)
}

func pointSolid(store *terrain.Store, p mgl64.Vec3) bool {
	wx := int(math.Floor(p.X()))
	wy := int(math.Floor(p.Y()))
	wz := int(math.Floor(p.Z()))

	key := terrain.ChunkKey{
		CX: mathx.FloorDiv(wx, terrain.ChunkSize),
		CY: mathx.FloorDiv(wy, terrain.ChunkSize),
		CZ: mathx.FloorDiv(wz, terrain.ChunkSize),
	}
	g, ok := store.Get(key)
	if !ok {
		return false
	}
	// Euclidean remainder: world x -1 lands in chunk -1 at local 15.
	return g.At(
		mathx.Mod(wx, terrain.ChunkSize),
		mathx.Mod(wy, terrain.ChunkSize),
		mathx.Mod(wz, terrain.ChunkSize),
	)
}
