package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelstream.dev/internal/protocol"
)

// Marshals each message struct and validates it against its schema, so
// struct tags and schemas cannot drift apart silently.
func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", raw, err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ViewerName:      "probe",
	})

	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "V1",
		WorldParams: protocol.WorldParams{
			TickRateHz:     20,
			ChunkSize:      16,
			RenderDistance: 3,
			Seed:           0,
			Noise:          protocol.NoiseParams{Frequency: 0.01, Amplitude: 32, Offset: 32},
			MeshMode:       "culled",
			SpawnPos:       [3]float64{0, 34, 0},
		},
	})

	validate(compile("input.schema.json"), protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Seq:             7,
		Yaw:             1.57,
		Pitch:           -0.2,
		Axes:            protocol.Axes{Forward: 1, Strafe: -0.5},
	})

	validate(compile("tick.schema.json"), protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            120,
		Pos:             [3]float64{4.5, 34, -18.25},
		Yaw:             3.1,
		Loaded:          343,
		Queued:          2,
	})

	validate(compile("chunk.schema.json"), protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		Tick:            120,
		Key:             [3]int{-1, 2, 0},
		Offset:          [3]int{-16, 32, 0},
		VertexCount:     2048,
		IndexCount:      9216,
		Encoding:        protocol.EncodingMeshZstd,
		Mesh:            "KLUv/QBY",
	})

	validate(compile("chunk_drop.schema.json"), protocol.ChunkDropMsg{
		Type:            protocol.TypeChunkDrop,
		ProtocolVersion: protocol.Version,
		Tick:            121,
		Key:             [3]int{-1, 2, 0},
	})

	validate(compile("voxels_get.schema.json"), protocol.VoxelsGetMsg{
		Type:            protocol.TypeVoxelsGet,
		ProtocolVersion: protocol.Version,
		Key:             [3]int{0, 0, 0},
	})

	validate(compile("voxels.schema.json"), protocol.VoxelsMsg{
		Type:            protocol.TypeVoxels,
		ProtocolVersion: protocol.Version,
		Key:             [3]int{0, 0, 0},
		Resident:        true,
		Encoding:        protocol.EncodingRLE,
		Data:            "AQCAIA==",
	})

	// Non-resident replies omit encoding and data entirely.
	validate(compile("voxels.schema.json"), protocol.VoxelsMsg{
		Type:            protocol.TypeVoxels,
		ProtocolVersion: protocol.Version,
		Key:             [3]int{50, 50, 50},
	})

	validate(compile("error.schema.json"), protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrProtoBadRequest,
		Message:         "unsupported protocol version",
	})
}

func TestSchemas_RejectBadInput(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "input.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var v any
	_ = json.Unmarshal([]byte(`{
	  "type":"INPUT",
	  "protocol_version":"0.1",
	  "seq":1,
	  "yaw":0,
	  "pitch":0,
	  "axes":{"forward":2.5,"strafe":0,"up":0}
	}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected axis out of range to fail validation")
	}
}
