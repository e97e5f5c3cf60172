package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/encoding"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// probe drives the observer across the terrain and checks what comes
// back. With -verify it regenerates every streamed chunk locally from
// the WELCOME world params, so any server/client divergence shows up
// as a logged mismatch.
type probe struct {
	conn *websocket.Conn
	log  *log.Logger
	rng  *rand.Rand

	orbit  bool
	verify bool

	field   *terrain.HeightField
	builder *mesh.Builder

	seq      uint64
	yaw      float64
	loaded   map[[3]int]int // chunk key -> vertex count
	vertices int

	verifiedChunks int
	verifiedVoxels int
	mismatches     int
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/viewer", "viewer ws url")
		name     = flag.String("name", "probe", "viewer name")
		path     = flag.String("path", "walk", "movement pattern: walk or orbit")
		seedFlag = flag.Int64("seed", 0, "random walk seed (0: time-based)")
		verify   = flag.Bool("verify", false, "cross-check streamed chunks against local generation")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	p := &probe{
		conn:   conn,
		log:    logger,
		rng:    rand.New(rand.NewSource(seed)),
		orbit:  *path == "orbit",
		verify: *verify,
		loaded: map[[3]int]int{},
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ViewerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			p.handleWelcome(w)
		case protocol.TypeTick:
			var tk protocol.TickMsg
			if err := json.Unmarshal(msg, &tk); err != nil {
				continue
			}
			p.handleTick(tk)
		case protocol.TypeChunk:
			var cm protocol.ChunkMsg
			if err := json.Unmarshal(msg, &cm); err != nil {
				continue
			}
			p.handleChunk(cm)
		case protocol.TypeChunkDrop:
			var dm protocol.ChunkDropMsg
			if err := json.Unmarshal(msg, &dm); err != nil {
				continue
			}
			if n, ok := p.loaded[dm.Key]; ok {
				p.vertices -= n
				delete(p.loaded, dm.Key)
			}
		case protocol.TypeVoxels:
			var vm protocol.VoxelsMsg
			if err := json.Unmarshal(msg, &vm); err != nil {
				continue
			}
			p.handleVoxels(vm)
		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			logger.Printf("server error %s: %s", em.Code, em.Message)
		}
	}
}

func (p *probe) handleWelcome(w protocol.WelcomeMsg) {
	wp := w.WorldParams
	p.log.Printf("WELCOME session=%s tick_rate=%d seed=%d mesh=%s spawn=%v",
		w.SessionID, wp.TickRateHz, wp.Seed, wp.MeshMode, wp.SpawnPos)

	if p.verify {
		p.field = terrain.NewHeightField(wp.Seed, wp.Noise.Frequency, wp.Noise.Amplitude, wp.Noise.Offset)
		b, err := mesh.NewBuilder(mesh.Mode(wp.MeshMode))
		if err != nil {
			p.log.Fatalf("mesh mode %q: %v", wp.MeshMode, err)
		}
		p.builder = b
	}
}

func (p *probe) handleTick(tk protocol.TickMsg) {
	// Re-aim occasionally, then keep walking.
	if p.orbit {
		p.yaw += 0.02
		if p.yaw > math.Pi {
			p.yaw -= 2 * math.Pi
		}
	} else if tk.Tick%40 == 0 {
		p.yaw = (p.rng.Float64() - 0.5) * 2 * math.Pi
	}
	p.seq++
	_ = p.conn.WriteJSON(protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Seq:             p.seq,
		Yaw:             p.yaw,
		Axes:            protocol.Axes{Forward: 1},
	})

	if p.verify && tk.Tick%50 == 25 && len(p.loaded) > 0 {
		p.requestRandomVoxels()
	}

	if tk.Tick%100 == 0 {
		if p.verify {
			p.log.Printf("tick=%d pos=[%.1f %.1f %.1f] chunks=%d vertices=%d verified=%d+%d mismatches=%d",
				tk.Tick, tk.Pos[0], tk.Pos[1], tk.Pos[2], len(p.loaded), p.vertices,
				p.verifiedChunks, p.verifiedVoxels, p.mismatches)
		} else {
			p.log.Printf("tick=%d pos=[%.1f %.1f %.1f] chunks=%d vertices=%d",
				tk.Tick, tk.Pos[0], tk.Pos[1], tk.Pos[2], len(p.loaded), p.vertices)
		}
	}
}

func (p *probe) handleChunk(cm protocol.ChunkMsg) {
	buf, err := encoding.DecodeMesh(cm.Mesh)
	if err != nil {
		p.mismatches++
		p.log.Printf("chunk %v: bad mesh payload: %v", cm.Key, err)
		return
	}
	if len(buf.Vertices) != cm.VertexCount || len(buf.Indices) != cm.IndexCount {
		p.mismatches++
		p.log.Printf("chunk %v: header %d/%d but payload %d/%d",
			cm.Key, cm.VertexCount, cm.IndexCount, len(buf.Vertices), len(buf.Indices))
	}

	if old, ok := p.loaded[cm.Key]; ok {
		p.vertices -= old
	}
	p.loaded[cm.Key] = len(buf.Vertices)
	p.vertices += len(buf.Vertices)

	if p.builder == nil {
		return
	}
	key := terrain.ChunkKey{CX: cm.Key[0], CY: cm.Key[1], CZ: cm.Key[2]}
	local := p.builder.Build(terrain.GenerateGrid(p.field, key))
	if !buffersEqual(buf, local) {
		p.mismatches++
		p.log.Printf("chunk %v: stream differs from local build (%d/%d vs %d/%d)",
			cm.Key, len(buf.Vertices), len(buf.Indices), len(local.Vertices), len(local.Indices))
		return
	}
	p.verifiedChunks++
}

func (p *probe) handleVoxels(vm protocol.VoxelsMsg) {
	if !vm.Resident {
		p.log.Printf("voxels %v: not resident", vm.Key)
		return
	}
	cells, err := encoding.DecodeOccupancy(vm.Data)
	if err != nil {
		p.mismatches++
		p.log.Printf("voxels %v: bad payload: %v", vm.Key, err)
		return
	}
	if p.field == nil {
		return
	}
	key := terrain.ChunkKey{CX: vm.Key[0], CY: vm.Key[1], CZ: vm.Key[2]}
	local := terrain.GenerateGrid(p.field, key).Occupancy()
	if len(cells) != len(local) {
		p.mismatches++
		p.log.Printf("voxels %v: %d cells, want %d", vm.Key, len(cells), len(local))
		return
	}
	for i := range cells {
		if cells[i] != local[i] {
			p.mismatches++
			p.log.Printf("voxels %v: cell %d differs from local generation", vm.Key, i)
			return
		}
	}
	p.verifiedVoxels++
}

func (p *probe) requestRandomVoxels() {
	keys := make([][3]int, 0, len(p.loaded))
	for k := range p.loaded {
		keys = append(keys, k)
	}
	key := keys[p.rng.Intn(len(keys))]
	_ = p.conn.WriteJSON(protocol.VoxelsGetMsg{
		Type:            protocol.TypeVoxelsGet,
		ProtocolVersion: protocol.Version,
		Key:             key,
	})
}

func buffersEqual(a, b mesh.Buffers) bool {
	if len(a.Vertices) != len(b.Vertices) || len(a.Normals) != len(b.Normals) || len(a.Indices) != len(b.Indices) {
		return false
	}
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			return false
		}
	}
	for i := range a.Normals {
		if a.Normals[i] != b.Normals[i] {
			return false
		}
	}
	for i := range a.Indices {
		if a.Indices[i] != b.Indices[i] {
			return false
		}
	}
	return true
}
