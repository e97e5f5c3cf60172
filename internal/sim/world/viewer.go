package world

import (
	"encoding/json"
	"sort"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/encoding"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// viewerSession is one connected viewer. All session state is owned by
// the world loop goroutine.
type viewerSession struct {
	id      string
	name    string
	tickOut chan []byte
	dataOut chan []byte

	// Chunks tracked for this session (may be pending a full send or a drop).
	chunks map[terrain.ChunkKey]*viewerChunk
}

type viewerChunk struct {
	key terrain.ChunkKey

	// sentFull indicates at least one CHUNK for this key reached the outbound queue.
	sentFull bool

	// needsFull forces a CHUNK send (set when the chunk is new to this session).
	needsFull bool
}

// chunkFrame is the encoded CHUNK message for one loaded chunk, built
// once at spawn time and shared by every session.
type chunkFrame struct {
	handle  Handle
	payload []byte
}

// broadcast fans the rendered chunk set out to viewer sessions. It is
// the world's default Renderer; Spawn and Despawn run only on the
// world loop goroutine.
type broadcast struct {
	w          *World
	nextHandle uint64
	frames     map[terrain.ChunkKey]*chunkFrame
	handles    map[Handle]terrain.ChunkKey
}

func newBroadcast(w *World) *broadcast {
	return &broadcast{
		w:       w,
		frames:  map[terrain.ChunkKey]*chunkFrame{},
		handles: map[Handle]terrain.ChunkKey{},
	}
}

func (b *broadcast) Spawn(key terrain.ChunkKey, offset [3]int, buffers *mesh.Buffers) Handle {
	b.nextHandle++
	h := Handle(b.nextHandle)

	msg := protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		Tick:            b.w.tick.Load(),
		Key:             [3]int{key.CX, key.CY, key.CZ},
		Offset:          offset,
		VertexCount:     len(buffers.Vertices),
		IndexCount:      len(buffers.Indices),
		Encoding:        protocol.EncodingMeshZstd,
		Mesh:            encoding.EncodeMesh(buffers),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		payload = nil
	}
	b.frames[key] = &chunkFrame{handle: h, payload: payload}
	b.handles[h] = key
	return h
}

func (b *broadcast) Despawn(h Handle) {
	key, ok := b.handles[h]
	if !ok {
		return
	}
	delete(b.handles, h)
	delete(b.frames, key)
}

func (b *broadcast) sortedFrameKeys() []terrain.ChunkKey {
	keys := make([]terrain.ChunkKey, 0, len(b.frames))
	for k := range b.frames {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (b *broadcast) sendChunk(sess *viewerSession, fr *chunkFrame) bool {
	if fr == nil || fr.payload == nil {
		return false
	}
	return trySend(sess.dataOut, fr.payload)
}

// stepViewers sends the per-tick state to every session and reconciles
// each session's chunk view against the loaded set. CHUNK sends are
// budgeted per tick; anything that does not fit, or does not survive a
// full outbound queue, retries on a later tick.
func (w *World) stepViewers(nowTick uint64) {
	if len(w.viewers) == 0 {
		return
	}

	tickMsg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Pos:             [3]float64{w.observer.Pos.X(), w.observer.Pos.Y(), w.observer.Pos.Z()},
		Yaw:             w.observer.Yaw,
		Pitch:           w.observer.Pitch,
		Loaded:          len(w.loaded),
		Queued:          w.queueDepth(),
	}
	tb, err := json.Marshal(tickMsg)
	if err != nil {
		return
	}

	wantKeys := w.hub.sortedFrameKeys()
	for _, id := range w.sortedViewerIDs() {
		sess := w.viewers[id]
		sendLatest(sess.tickOut, tb)
		w.stepViewerChunks(sess, wantKeys, nowTick)
	}
}

// stepViewerChunks walks the loaded set for one session: drops go out
// first so the viewer never keeps a despawned chunk past this tick's
// sends, then missing chunks send up to the per-tick budget.
func (w *World) stepViewerChunks(sess *viewerSession, wantKeys []terrain.ChunkKey, nowTick uint64) {
	var evict []terrain.ChunkKey
	for key, st := range sess.chunks {
		if _, ok := w.hub.frames[key]; ok {
			continue
		}
		if !st.sentFull {
			evict = append(evict, key)
			continue
		}
		msg := protocol.ChunkDropMsg{
			Type:            protocol.TypeChunkDrop,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			Key:             [3]int{key.CX, key.CY, key.CZ},
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if trySend(sess.dataOut, b) {
			evict = append(evict, key)
		}
		// A failed drop send retries next tick.
	}
	for _, k := range evict {
		delete(sess.chunks, k)
	}

	budget := w.cfg.Viewer.MaxChunkMsgsPerTick
	canSend := true
	for _, key := range wantKeys {
		st := sess.chunks[key]
		if st == nil {
			st = &viewerChunk{key: key, needsFull: true}
			sess.chunks[key] = st
		}
		if !canSend || !st.needsFull || budget <= 0 {
			continue
		}
		if w.hub.sendChunk(sess, w.hub.frames[key]) {
			st.sentFull = true
			st.needsFull = false
			budget--
		} else {
			// Outbound queue is likely full; don't spend more sends on
			// this session this tick.
			canSend = false
		}
	}
}

func (w *World) sortedViewerIDs() []string {
	ids := make([]string, 0, len(w.viewers))
	for id := range w.viewers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) queueDepth() int {
	if w.sched == nil {
		return 0
	}
	return w.sched.queueDepth()
}

func (w *World) handleViewerJoin(req ViewerJoinRequest) {
	sess := &viewerSession{
		id:      req.SessionID,
		name:    req.Name,
		tickOut: req.TickOut,
		dataOut: req.DataOut,
		chunks:  map[terrain.ChunkKey]*viewerChunk{},
	}
	w.viewers[req.SessionID] = sess
	if req.Resp != nil {
		req.Resp <- protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       req.SessionID,
			WorldParams:     w.WorldParams(),
		}
	}
}

func (w *World) handleViewerLeave(id string) {
	delete(w.viewers, id)
}

// handleVoxelsReq answers a debug occupancy dump. Lookups never
// generate; a chunk nobody has streamed near yet reports resident=false.
func (w *World) handleVoxelsReq(req VoxelsRequest) {
	sess := w.viewers[req.SessionID]
	if sess == nil {
		return
	}

	msg := protocol.VoxelsMsg{
		Type:            protocol.TypeVoxels,
		ProtocolVersion: protocol.Version,
		Key:             req.Key,
	}
	key := terrain.ChunkKey{CX: req.Key[0], CY: req.Key[1], CZ: req.Key[2]}
	if g, ok := w.store.Get(key); ok {
		msg.Resident = true
		msg.Encoding = protocol.EncodingRLE
		msg.Data = encoding.EncodeOccupancy(g.Occupancy())
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	trySend(sess.dataOut, b)
}
