package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"voxelstream.dev/internal/sim/mesh"
)

// Decoded counts above this are rejected before allocating. A full
// naive chunk tops out at 32768 vertices.
const maxMeshElems = 1 << 20

var (
	meshEnc *zstd.Encoder
	meshDec *zstd.Decoder
)

func init() {
	var err error
	meshEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	meshDec, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// EncodeMesh packs buffers as little-endian binary (counts, positions,
// normals, indices), compresses with zstd and encodes base64 for
// embedding in a JSON frame.
func EncodeMesh(b *mesh.Buffers) string {
	raw := make([]byte, 0, 8+len(b.Vertices)*24+len(b.Indices)*4)
	var tmp [4]byte

	put32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		raw = append(raw, tmp[:]...)
	}
	putVec := func(v mgl32.Vec3) {
		for _, f := range v {
			put32(math.Float32bits(f))
		}
	}

	put32(uint32(len(b.Vertices)))
	put32(uint32(len(b.Indices)))
	for _, v := range b.Vertices {
		putVec(v)
	}
	for _, n := range b.Normals {
		putVec(n)
	}
	for _, i := range b.Indices {
		put32(i)
	}

	return base64.StdEncoding.EncodeToString(meshEnc.EncodeAll(raw, nil))
}

// DecodeMesh reverses EncodeMesh.
func DecodeMesh(b64 string) (mesh.Buffers, error) {
	var out mesh.Buffers

	comp, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return out, fmt.Errorf("mesh payload base64: %w", err)
	}
	raw, err := meshDec.DecodeAll(comp, nil)
	if err != nil {
		return out, fmt.Errorf("mesh payload zstd: %w", err)
	}
	if len(raw) < 8 {
		return out, fmt.Errorf("mesh payload truncated: %d bytes", len(raw))
	}

	nv := binary.LittleEndian.Uint32(raw[0:4])
	ni := binary.LittleEndian.Uint32(raw[4:8])
	if nv > maxMeshElems || ni > maxMeshElems {
		return out, fmt.Errorf("mesh payload counts out of range: %d/%d", nv, ni)
	}
	want := 8 + int(nv)*24 + int(ni)*4
	if len(raw) != want {
		return out, fmt.Errorf("mesh payload length %d want %d", len(raw), want)
	}

	off := 8
	get32 := func() uint32 {
		v := binary.LittleEndian.Uint32(raw[off : off+4])
		off += 4
		return v
	}
	getVec := func() mgl32.Vec3 {
		var v mgl32.Vec3
		for i := range v {
			v[i] = math.Float32frombits(get32())
		}
		return v
	}

	out.Vertices = make([]mgl32.Vec3, nv)
	for i := range out.Vertices {
		out.Vertices[i] = getVec()
	}
	out.Normals = make([]mgl32.Vec3, nv)
	for i := range out.Normals {
		out.Normals[i] = getVec()
	}
	out.Indices = make([]uint32, ni)
	for i := range out.Indices {
		out.Indices[i] = get32()
	}
	return out, nil
}
