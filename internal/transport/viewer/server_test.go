package viewer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/encoding"
	"voxelstream.dev/internal/sim/world"
)

func startWorld(t *testing.T, cfg world.Config) *world.World {
	t.Helper()
	cfg.Workers = 0
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dialViewer(t *testing.T, w *world.World) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(w, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntilType skips messages until one of the wanted type arrives.
func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) []byte {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", msgType, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode %q: %v", msg, err)
		}
		if base.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message before deadline", msgType)
	return nil
}

func shake(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	sendJSON(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ViewerName:      "test",
	})
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeWelcome), &welcome); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	return welcome
}

func TestServer_HandshakeAndWelcome(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)

	welcome := shake(t, conn)
	if welcome.SessionID != "V1" {
		t.Fatalf("session_id = %q, want V1", welcome.SessionID)
	}
	if welcome.ProtocolVersion != protocol.Version {
		t.Fatalf("protocol_version = %q", welcome.ProtocolVersion)
	}
	wp := welcome.WorldParams
	if wp.ChunkSize != 16 || wp.TickRateHz != 50 || wp.RenderDistance != 1 {
		t.Fatalf("world params = %+v", wp)
	}
	if wp.SpawnPos != [3]float64{0, 34, 0} {
		t.Fatalf("spawn_pos = %v", wp.SpawnPos)
	}
}

func TestServer_RejectsWrongProtocolVersion(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)

	sendJSON(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "9.9"})

	var em protocol.ErrorMsg
	if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeError), &em); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code = %q, want %q", em.Code, protocol.ErrProtoBadRequest)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read after reject = %v, want policy violation close", err)
	}
}

func TestServer_RejectsNonHelloFirstMessage(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)

	sendJSON(t, conn, protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version})

	var em protocol.ErrorMsg
	if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeError), &em); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code = %q, want %q", em.Code, protocol.ErrProtoBadRequest)
	}
}

func TestServer_StreamsTicksAndChunks(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)
	shake(t, conn)

	// TICK and CHUNK interleave freely, so dispatch by type until the
	// whole loaded cube arrived.
	var tick *protocol.TickMsg
	seen := map[[3]int]protocol.ChunkMsg{}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for tick == nil || len(seen) < 27 {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read (%d chunks so far): %v", len(seen), err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode %q: %v", msg, err)
		}
		switch base.Type {
		case protocol.TypeTick:
			if tick == nil {
				tick = new(protocol.TickMsg)
				if err := json.Unmarshal(msg, tick); err != nil {
					t.Fatalf("unmarshal tick: %v", err)
				}
			}
		case protocol.TypeChunk:
			var cm protocol.ChunkMsg
			if err := json.Unmarshal(msg, &cm); err != nil {
				t.Fatalf("unmarshal chunk: %v", err)
			}
			seen[cm.Key] = cm
		}
	}

	if tick.Loaded != 27 {
		t.Fatalf("loaded = %d, want 27", tick.Loaded)
	}
	if tick.Pos != [3]float64{0, 34, 0} {
		t.Fatalf("pos = %v", tick.Pos)
	}

	for key, cm := range seen {
		want := [3]int{key[0] * 16, key[1] * 16, key[2] * 16}
		if cm.Offset != want {
			t.Fatalf("chunk %v offset = %v, want %v", key, cm.Offset, want)
		}
		if cm.Encoding != protocol.EncodingMeshZstd {
			t.Fatalf("chunk %v encoding = %q", key, cm.Encoding)
		}
		buf, err := encoding.DecodeMesh(cm.Mesh)
		if err != nil {
			t.Fatalf("decode chunk %v: %v", key, err)
		}
		if len(buf.Vertices) != cm.VertexCount || len(buf.Indices) != cm.IndexCount {
			t.Fatalf("chunk %v counts = %d/%d, header says %d/%d",
				key, len(buf.Vertices), len(buf.Indices), cm.VertexCount, cm.IndexCount)
		}
	}
}

func TestServer_InputDrivesObserver(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)
	shake(t, conn)

	sendJSON(t, conn, protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Seq:             1,
		Axes:            protocol.Axes{Forward: 1},
	})

	// Intent is sticky, so the observer keeps moving -Z until we see it.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var tick protocol.TickMsg
		if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeTick), &tick); err != nil {
			t.Fatalf("unmarshal tick: %v", err)
		}
		if tick.Pos[2] < -0.05 {
			if tick.Pos[1] != 34 {
				t.Fatalf("pos.y = %v, want 34", tick.Pos[1])
			}
			return
		}
	}
	t.Fatal("observer never moved")
}

func TestServer_VoxelsDebugDump(t *testing.T) {
	w := startWorld(t, world.Config{TickRateHz: 50, RenderDistance: 1})
	conn := dialViewer(t, w)
	shake(t, conn)

	// Wait for a tick so the spawn cube is resident.
	readUntilType(t, conn, protocol.TypeTick)

	sendJSON(t, conn, protocol.VoxelsGetMsg{
		Type:            protocol.TypeVoxelsGet,
		ProtocolVersion: protocol.Version,
		Key:             [3]int{0, 1, 0},
	})
	var vm protocol.VoxelsMsg
	if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeVoxels), &vm); err != nil {
		t.Fatalf("unmarshal voxels: %v", err)
	}
	if !vm.Resident || vm.Encoding != protocol.EncodingRLE {
		t.Fatalf("voxels = %+v, want resident RLE", vm)
	}
	cells, err := encoding.DecodeOccupancy(vm.Data)
	if err != nil {
		t.Fatalf("decode occupancy: %v", err)
	}
	if len(cells) != 16*16*16 {
		t.Fatalf("occupancy cells = %d, want 4096", len(cells))
	}

	// Far away chunks were never generated and must stay that way.
	sendJSON(t, conn, protocol.VoxelsGetMsg{
		Type:            protocol.TypeVoxelsGet,
		ProtocolVersion: protocol.Version,
		Key:             [3]int{50, 50, 50},
	})
	vm = protocol.VoxelsMsg{}
	if err := json.Unmarshal(readUntilType(t, conn, protocol.TypeVoxels), &vm); err != nil {
		t.Fatalf("unmarshal voxels: %v", err)
	}
	if vm.Resident || vm.Data != "" {
		t.Fatalf("voxels = %+v, want non-resident", vm)
	}
}
