package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// recordRenderer captures spawn/despawn traffic without encoding
// anything.
type recordRenderer struct {
	next     uint64
	byHandle map[Handle]terrain.ChunkKey
	spawns   map[terrain.ChunkKey][3]int
	despawns []terrain.ChunkKey
}

func newRecordRenderer() *recordRenderer {
	return &recordRenderer{
		byHandle: map[Handle]terrain.ChunkKey{},
		spawns:   map[terrain.ChunkKey][3]int{},
	}
}

func (r *recordRenderer) Spawn(key terrain.ChunkKey, offset [3]int, buffers *mesh.Buffers) Handle {
	r.next++
	h := Handle(r.next)
	r.byHandle[h] = key
	r.spawns[key] = offset
	return h
}

func (r *recordRenderer) Despawn(h Handle) {
	key, ok := r.byHandle[h]
	if !ok {
		return
	}
	delete(r.byHandle, h)
	r.despawns = append(r.despawns, key)
}

func syncWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	cfg.Workers = 0
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func TestStreaming_LoadsCubeAroundSpawn(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 5, RenderDistance: 1})
	rr := newRecordRenderer()
	w.SetRenderer(rr)

	w.StepOnce(nil)

	center := w.observerChunk()
	if center != (terrain.ChunkKey{CX: 0, CY: 2, CZ: 0}) {
		t.Fatalf("spawn chunk: got %+v", center)
	}
	if len(w.loaded) != 27 {
		t.Fatalf("loaded = %d, want 27", len(w.loaded))
	}
	for cx := -1; cx <= 1; cx++ {
		for cy := 1; cy <= 3; cy++ {
			for cz := -1; cz <= 1; cz++ {
				key := terrain.ChunkKey{CX: cx, CY: cy, CZ: cz}
				off, ok := rr.spawns[key]
				if !ok {
					t.Fatalf("chunk %+v not spawned", key)
				}
				want := [3]int{cx * 16, cy * 16, cz * 16}
				if off != want {
					t.Fatalf("offset for %+v = %v, want %v", key, off, want)
				}
			}
		}
	}
	if len(rr.despawns) != 0 {
		t.Fatalf("unexpected despawns: %v", rr.despawns)
	}
}

func TestStreaming_SecondTickIsStable(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 5, RenderDistance: 1})
	rr := newRecordRenderer()
	w.SetRenderer(rr)

	w.StepOnce(nil)
	spawned := len(rr.spawns)
	w.StepOnce(nil)

	if len(rr.spawns) != spawned {
		t.Fatalf("second tick spawned more chunks: %d -> %d", spawned, len(rr.spawns))
	}
	if len(rr.despawns) != 0 {
		t.Fatalf("second tick despawned: %v", rr.despawns)
	}
}

func TestStreaming_DespawnsBehindMovingObserver(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 5, RenderDistance: 1})
	rr := newRecordRenderer()
	w.SetRenderer(rr)

	w.StepOnce(nil)
	w.observer.Pos = mgl64.Vec3{40, 34, 0} // chunk (2,2,0)
	w.StepOnce(nil)

	if len(w.loaded) != 27 {
		t.Fatalf("loaded = %d, want 27", len(w.loaded))
	}
	if len(rr.despawns) != 18 {
		t.Fatalf("despawns = %d, want 18", len(rr.despawns))
	}
	for _, key := range rr.despawns {
		if key.CX >= 1 {
			t.Fatalf("despawned chunk %+v is still in range", key)
		}
	}
	for key := range w.loaded {
		if key.CX < 1 || key.CX > 3 {
			t.Fatalf("loaded chunk %+v outside the new cube", key)
		}
	}
}

func TestStreaming_VoxelDataSurvivesDespawn(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 5, RenderDistance: 1})
	rr := newRecordRenderer()
	w.SetRenderer(rr)

	w.StepOnce(nil)
	key := terrain.ChunkKey{CX: -1, CY: 2, CZ: -1}
	g1, ok := w.store.Get(key)
	if !ok {
		t.Fatalf("chunk %+v not resident after load", key)
	}

	// Walk out of range and back; the grid must never regenerate.
	w.observer.Pos = mgl64.Vec3{64, 34, 64}
	w.StepOnce(nil)
	if _, loaded := w.loaded[key]; loaded {
		t.Fatalf("chunk %+v still loaded after leaving", key)
	}
	if _, ok := w.store.Get(key); !ok {
		t.Fatalf("chunk %+v evicted from store on despawn", key)
	}

	w.observer.Pos = mgl64.Vec3{0, 34, 0}
	w.StepOnce(nil)
	g2, ok := w.store.Get(key)
	if !ok {
		t.Fatalf("chunk %+v missing after re-entry", key)
	}
	if g1 != g2 {
		t.Fatalf("chunk %+v regenerated on re-entry", key)
	}
	if _, loaded := w.loaded[key]; !loaded {
		t.Fatalf("chunk %+v not re-spawned on re-entry", key)
	}
}

func TestStreaming_ResidentGrowsMonotonically(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 5, RenderDistance: 1})
	rr := newRecordRenderer()
	w.SetRenderer(rr)

	w.StepOnce(nil)
	if got := w.store.Len(); got != 27 {
		t.Fatalf("resident = %d, want 27", got)
	}
	w.observer.Pos = mgl64.Vec3{40, 34, 0}
	w.StepOnce(nil)
	// 9 chunks overlap between the old and new cubes.
	if got := w.store.Len(); got != 45 {
		t.Fatalf("resident = %d, want 45", got)
	}
}
