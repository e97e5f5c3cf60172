package world

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// ViewerJoinRequest registers a read-only viewer session that receives:
// - per-tick observer state (TickOut)
// - chunk meshes and drops (DataOut)
//
// All viewer state is maintained by the world loop goroutine. The world
// replies on Resp with the WELCOME to send.
type ViewerJoinRequest struct {
	SessionID string
	Name      string
	TickOut   chan []byte
	DataOut   chan []byte
	Resp      chan protocol.WelcomeMsg
}

// InputEnvelope carries one viewer's INPUT message. The last envelope
// applied before a tick drives the observer.
type InputEnvelope struct {
	SessionID string
	Msg       protocol.InputMsg
}

// VoxelsRequest asks for a debug occupancy dump of one chunk. The
// reply goes straight to the session's outbound channel.
type VoxelsRequest struct {
	SessionID string
	Key       [3]int
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is the per-tick record shared by the JSONL log and the
// sqlite index. It carries the inputs applied that tick, so a log
// recorded with workers=0 can be replayed through StepOnce and checked
// digest by digest.
type TickLogEntry struct {
	Tick      uint64        `json:"tick"`
	Center    [3]int        `json:"center"`
	Loaded    int           `json:"loaded"`
	Queued    int           `json:"queued"`
	Spawned   int           `json:"spawned"`
	Despawned int           `json:"despawned"`
	GenNs     int64         `json:"gen_ns"`
	MeshNs    int64         `json:"mesh_ns"`
	Inputs    []LoggedInput `json:"inputs,omitempty"`
	Digest    string        `json:"digest"`
}

// LoggedInput is the replay-relevant slice of one INPUT message.
// Session and seq are deliberately absent; the observer does not care
// who steered.
type LoggedInput struct {
	Yaw     float64 `json:"yaw"`
	Pitch   float64 `json:"pitch"`
	Forward float64 `json:"forward"`
	Strafe  float64 `json:"strafe"`
	Up      float64 `json:"up"`
}

type observerState struct {
	Pos   mgl64.Vec3
	Yaw   float64
	Pitch float64
}

// World is a single-threaded authoritative simulation around one
// observer. All state must be accessed only from the world loop
// goroutine; the store and the stats counters are the exceptions and
// carry their own synchronization.
type World struct {
	cfg Config

	tick atomic.Uint64

	field   *terrain.HeightField
	store   *terrain.Store
	builder *mesh.Builder
	sched   *scheduler // nil when cfg.Workers == 0

	observer observerState
	intent   moveIntent

	// Rendered chunks and their handles. The desired-vs-loaded diff
	// runs against this set every tick.
	loaded map[terrain.ChunkKey]Handle

	renderer Renderer
	hub      *broadcast

	viewers map[string]*viewerSession

	viewerJoin  chan ViewerJoinRequest
	viewerLeave chan string
	inputs      chan InputEnvelope
	voxelsReq   chan VoxelsRequest
	stop        chan struct{}

	tickLogger TickLogger

	// Updated from the world loop, read by Metrics().
	metrics atomic.Value

	spawnedTotal   uint64
	despawnedTotal uint64
	genNsTotal     int64
	meshNsTotal    int64
}

func New(cfg Config) (*World, error) {
	cfg.applyDefaults()

	field := terrain.NewHeightField(cfg.Seed, cfg.Noise.Frequency, cfg.Noise.Amplitude, cfg.Noise.Offset)
	builder, err := mesh.NewBuilder(cfg.MeshMode)
	if err != nil {
		return nil, fmt.Errorf("mesh builder: %w", err)
	}

	w := &World{
		cfg:         cfg,
		field:       field,
		store:       terrain.NewStore(terrain.HeightGen{Field: field}),
		builder:     builder,
		observer:    observerState{Pos: cfg.SpawnPos},
		loaded:      map[terrain.ChunkKey]Handle{},
		viewers:     map[string]*viewerSession{},
		viewerJoin:  make(chan ViewerJoinRequest, 16),
		viewerLeave: make(chan string, 16),
		inputs:      make(chan InputEnvelope, 256),
		voxelsReq:   make(chan VoxelsRequest, 64),
		stop:        make(chan struct{}),
	}
	w.hub = newBroadcast(w)
	w.renderer = w.hub
	if cfg.Workers > 0 {
		w.sched = newScheduler(w.store, w.builder, cfg.Workers, cfg.RenderDistance)
	}
	return w, nil
}

// SetRenderer replaces the viewer broadcast with another rendering
// collaborator. Must be called before Run.
func (w *World) SetRenderer(r Renderer) { w.renderer = r }

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) ViewerJoin() chan<- ViewerJoinRequest { return w.viewerJoin }
func (w *World) ViewerLeave() chan<- string           { return w.viewerLeave }
func (w *World) Inputs() chan<- InputEnvelope         { return w.inputs }
func (w *World) VoxelsReq() chan<- VoxelsRequest      { return w.voxelsReq }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() Config  { return w.cfg }
func (w *World) Seed() int64     { return w.cfg.Seed }
func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

// WorldParams assembles the WELCOME parameter block.
func (w *World) WorldParams() protocol.WorldParams {
	return protocol.WorldParams{
		TickRateHz:     w.cfg.TickRateHz,
		ChunkSize:      terrain.ChunkSize,
		RenderDistance: w.cfg.RenderDistance,
		Seed:           w.cfg.Seed,
		Noise: protocol.NoiseParams{
			Frequency: w.cfg.Noise.Frequency,
			Amplitude: w.cfg.Noise.Amplitude,
			Offset:    w.cfg.Noise.Offset,
		},
		MeshMode: string(w.builder.Mode()),
		SpawnPos: [3]float64{w.cfg.SpawnPos.X(), w.cfg.SpawnPos.Y(), w.cfg.SpawnPos.Z()},
	}
}

// observerChunk floor-divides the observer position into chunk space.
func (w *World) observerChunk() terrain.ChunkKey {
	return chunkAt(w.observer.Pos)
}
