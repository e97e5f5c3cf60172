package world

import (
	"sort"
	"time"

	"voxelstream.dev/internal/sim/mathx"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// streamReport summarizes one streaming pass for telemetry.
type streamReport struct {
	spawned   int
	despawned int
	genNs     int64
	meshNs    int64
}

func (w *World) inRange(key, center terrain.ChunkKey) bool {
	return mathx.Chebyshev(key.CX, key.CY, key.CZ, center.CX, center.CY, center.CZ) <= w.cfg.RenderDistance
}

// streamChunks diffs the desired cube around the observer against the
// loaded set. Chunks that left the cube despawn first, then missing
// chunks spawn: inline when Workers == 0, through the scheduler
// otherwise. Voxel data for despawned chunks stays resident in the
// store, so re-entering a region never regenerates terrain.
func (w *World) streamChunks() streamReport {
	center := w.observerChunk()
	var rep streamReport

	var drop []terrain.ChunkKey
	for key := range w.loaded {
		if !w.inRange(key, center) {
			drop = append(drop, key)
		}
	}
	sort.Slice(drop, func(i, j int) bool { return drop[i].Less(drop[j]) })
	for _, key := range drop {
		w.renderer.Despawn(w.loaded[key])
		delete(w.loaded, key)
		w.despawnedTotal++
		rep.despawned++
	}

	if w.sched == nil {
		w.streamSync(center, &rep)
	} else {
		w.streamAsync(center, &rep)
	}
	return rep
}

// streamSync generates and meshes every missing chunk before the tick
// ends. Iteration is in key order, x outermost.
func (w *World) streamSync(center terrain.ChunkKey, rep *streamReport) {
	r := w.cfg.RenderDistance
	for cx := center.CX - r; cx <= center.CX+r; cx++ {
		for cy := center.CY - r; cy <= center.CY+r; cy++ {
			for cz := center.CZ - r; cz <= center.CZ+r; cz++ {
				key := terrain.ChunkKey{CX: cx, CY: cy, CZ: cz}
				if _, ok := w.loaded[key]; ok {
					continue
				}

				genStart := time.Now()
				grid := w.store.GetOrGenerate(key)
				rep.genNs += time.Since(genStart).Nanoseconds()

				meshStart := time.Now()
				buffers := w.builder.Build(grid)
				rep.meshNs += time.Since(meshStart).Nanoseconds()

				w.spawnChunk(key, &buffers)
				rep.spawned++
			}
		}
	}
}

func (w *World) streamAsync(center terrain.ChunkKey, rep *streamReport) {
	w.sched.setCenter(center)

	r := w.cfg.RenderDistance
	for cx := center.CX - r; cx <= center.CX+r; cx++ {
		for cy := center.CY - r; cy <= center.CY+r; cy++ {
			for cz := center.CZ - r; cz <= center.CZ+r; cz++ {
				key := terrain.ChunkKey{CX: cx, CY: cy, CZ: cz}
				if _, ok := w.loaded[key]; ok {
					continue
				}
				w.sched.enqueue(key)
			}
		}
	}

	// Drain whatever the workers finished. Results the observer has
	// moved away from are discarded; anything still wanted gets
	// re-enqueued next tick. The loaded check covers duplicate builds.
	for {
		select {
		case res := <-w.sched.results:
			if _, ok := w.loaded[res.key]; ok {
				continue
			}
			if !w.inRange(res.key, center) {
				continue
			}
			w.spawnChunk(res.key, res.buffers)
			rep.spawned++
			rep.genNs += res.genNs
			rep.meshNs += res.meshNs
		default:
			return
		}
	}
}

func (w *World) spawnChunk(key terrain.ChunkKey, buffers *mesh.Buffers) {
	offset := [3]int{
		key.CX * terrain.ChunkSize,
		key.CY * terrain.ChunkSize,
		key.CZ * terrain.ChunkSize,
	}
	h := w.renderer.Spawn(key, offset, buffers)
	w.loaded[key] = h
	w.spawnedTotal++
}
