package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.dev/internal/sim/terrain"
)

// Face table in fixed emission order. Corners wind counter-clockwise
// seen from outside the cube.
var faces = [6]struct {
	dx, dy, dz int
	normal     mgl32.Vec3
	corners    [4][3]float32
}{
	{-1, 0, 0, mgl32.Vec3{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{1, 0, 0, mgl32.Vec3{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{0, -1, 0, mgl32.Vec3{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{0, 1, 0, mgl32.Vec3{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{0, 0, -1, mgl32.Vec3{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
	{0, 0, 1, mgl32.Vec3{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
}

func solidAt(g *terrain.Grid, x, y, z int) bool {
	if x < 0 || x >= terrain.ChunkSize ||
		y < 0 || y >= terrain.ChunkSize ||
		z < 0 || z >= terrain.ChunkSize {
		return false
	}
	return g.At(x, y, z)
}

func buildCulled(g *terrain.Grid) Buffers {
	var out Buffers
	for x := 0; x < terrain.ChunkSize; x++ {
		for y := 0; y < terrain.ChunkSize; y++ {
			for z := 0; z < terrain.ChunkSize; z++ {
				if !g.At(x, y, z) {
					continue
				}
				for _, f := range faces {
					if solidAt(g, x+f.dx, y+f.dy, z+f.dz) {
						continue
					}
					base := uint32(len(out.Vertices))
					for _, c := range f.corners {
						out.Vertices = append(out.Vertices, mgl32.Vec3{
							float32(x) + c[0],
							float32(y) + c[1],
							float32(z) + c[2],
						})
						out.Normals = append(out.Normals, f.normal)
					}
					out.Indices = append(out.Indices,
						base, base+1, base+2,
						base, base+2, base+3,
					)
				}
			}
		}
	}
	return out
}
