package world

import (
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// Handle identifies one spawned chunk render. Opaque to the world.
type Handle uint64

// Renderer is the rendering collaborator: it receives finished chunk
// geometry positioned at a world offset and later the despawn of that
// geometry. The world never reads geometry back. Implementations are
// called only from the world loop goroutine.
type Renderer interface {
	Spawn(key terrain.ChunkKey, offset [3]int, buffers *mesh.Buffers) Handle
	Despawn(h Handle)
}
