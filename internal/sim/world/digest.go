package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"voxelstream.dev/internal/sim/terrain"
)

// stateDigest hashes everything the simulation owns: tick, seed,
// observer state and the loaded chunk set with each chunk's voxel
// digest. Two runs fed identical inputs must agree on every tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteU64(h, &tmp, math.Float64bits(w.observer.Pos.X()))
	digestWriteU64(h, &tmp, math.Float64bits(w.observer.Pos.Y()))
	digestWriteU64(h, &tmp, math.Float64bits(w.observer.Pos.Z()))
	digestWriteU64(h, &tmp, math.Float64bits(w.observer.Yaw))
	digestWriteU64(h, &tmp, math.Float64bits(w.observer.Pitch))

	keys := make([]terrain.ChunkKey, 0, len(w.loaded))
	for k := range w.loaded {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	digestWriteU64(h, &tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteI64(h, &tmp, int64(k.CX))
		digestWriteI64(h, &tmp, int64(k.CY))
		digestWriteI64(h, &tmp, int64(k.CZ))
		if g, ok := w.store.Get(k); ok {
			d := g.Digest()
			h.Write(d[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
