package protocol

import "encoding/json"

const Version = "0.1"

// Message types.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeInput     = "INPUT"
	TypeTick      = "TICK"
	TypeChunk     = "CHUNK"
	TypeChunkDrop = "CHUNK_DROP"
	TypeVoxelsGet = "VOXELS_GET"
	TypeVoxels    = "VOXELS"
	TypeError     = "ERROR"
)

// Payload encodings carried in CHUNK and VOXELS messages.
const (
	EncodingMeshZstd = "zstd-b64"
	EncodingRLE      = "RLE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
