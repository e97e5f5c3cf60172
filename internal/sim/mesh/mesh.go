// Package mesh turns occupancy grids into triangle geometry. Two
// builders share one contract: the naive mode emits a full cube per
// solid voxel regardless of neighbors, the culled mode emits only
// faces whose 6-neighbor is empty or outside the grid. Both iterate x-major, then y, then z, so a given grid
// always produces byte-identical buffers.
package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.dev/internal/sim/terrain"
)

type Mode string

const (
	// ModeNaive keeps every face, hidden or not: 8 vertices, 8 normals
	// and 36 indices per solid voxel.
	ModeNaive Mode = "naive"
	// ModeCulled drops faces shared by two solid voxels. Default.
	ModeCulled Mode = "culled"
)

// Buffers is the triangulated surface of one chunk in chunk-local
// coordinates. Vertices, Normals are parallel; Indices triple into
// triangles.
type Buffers struct {
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3
	Indices  []uint32
}

// Builder is stateless and safe for concurrent Build calls.
type Builder struct {
	mode Mode
}

func NewBuilder(mode Mode) (*Builder, error) {
	switch mode {
	case ModeNaive, ModeCulled:
		return &Builder{mode: mode}, nil
	default:
		return nil, fmt.Errorf("mesh: unknown mode %q", mode)
	}
}

func (b *Builder) Mode() Mode {
	return b.mode
}

func (b *Builder) Build(g *terrain.Grid) Buffers {
	if b.mode == ModeNaive {
		return buildNaive(g)
	}
	return buildCulled(g)
}
