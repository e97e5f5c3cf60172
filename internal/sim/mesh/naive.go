package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.dev/internal/sim/terrain"
)

// Corner offsets of a unit cube: the four corners of the z face
// counter-clockwise, then the same four at z+1.
var cubeCorners = [8][3]float32{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// 12 triangles over the shared corners: front, right, back, left,
// top, bottom.
var cubeIndices = [36]uint32{
	0, 1, 2, 2, 3, 0,
	1, 5, 6, 6, 2, 1,
	5, 4, 7, 7, 6, 5,
	4, 0, 3, 3, 7, 4,
	3, 2, 6, 6, 7, 3,
	4, 5, 1, 1, 0, 4,
}

// With 8 shared corners a cube cannot carry per-face normals; each
// corner gets its outward diagonal instead.
var cubeNormals = [8]mgl32.Vec3{}

func init() {
	const s = 0.57735027 // 1/sqrt(3)
	for i, c := range cubeCorners {
		cubeNormals[i] = mgl32.Vec3{
			(c[0]*2 - 1) * s,
			(c[1]*2 - 1) * s,
			(c[2]*2 - 1) * s,
		}
	}
}

func buildNaive(g *terrain.Grid) Buffers {
	k := g.Solids()
	out := Buffers{
		Vertices: make([]mgl32.Vec3, 0, 8*k),
		Normals:  make([]mgl32.Vec3, 0, 8*k),
		Indices:  make([]uint32, 0, 36*k),
	}
	for x := 0; x < terrain.ChunkSize; x++ {
		for y := 0; y < terrain.ChunkSize; y++ {
			for z := 0; z < terrain.ChunkSize; z++ {
				if !g.At(x, y, z) {
					continue
				}
				base := uint32(len(out.Vertices))
				for i, c := range cubeCorners {
					out.Vertices = append(out.Vertices, mgl32.Vec3{
						float32(x) + c[0],
						float32(y) + c[1],
						float32(z) + c[2],
					})
					out.Normals = append(out.Normals, cubeNormals[i])
				}
				for _, idx := range cubeIndices {
					out.Indices = append(out.Indices, base+idx)
				}
			}
		}
	}
	return out
}
