package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ViewerName      string `json:"viewer_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

// WorldParams carries everything a viewer needs to mirror the world:
// the terrain is fully derivable from the seed and noise settings.
type WorldParams struct {
	TickRateHz     int         `json:"tick_rate_hz"`
	ChunkSize      int         `json:"chunk_size"`
	RenderDistance int         `json:"render_distance"`
	Seed           int64       `json:"seed"`
	Noise          NoiseParams `json:"noise"`
	MeshMode       string      `json:"mesh_mode"`
	SpawnPos       [3]float64  `json:"spawn_pos"`
}

type NoiseParams struct {
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
	Offset    float64 `json:"offset"`
}

// INPUT (client -> server): the observer's orientation and move intent
// for the next tick. Axes are clamped server-side to [-1, 1].
type InputMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Seq             uint64  `json:"seq"`
	Yaw             float64 `json:"yaw"`
	Pitch           float64 `json:"pitch"`
	Axes            Axes    `json:"axes"`
}

type Axes struct {
	Forward float64 `json:"forward"`
	Strafe  float64 `json:"strafe"`
	Up      float64 `json:"up"`
}

// TICK (server -> client), once per tick.
type TickMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Pos             [3]float64 `json:"pos"`
	Yaw             float64    `json:"yaw"`
	Pitch           float64    `json:"pitch"`
	Loaded          int        `json:"loaded"`
	Queued          int        `json:"queued"`
}

// CHUNK (server -> client): one chunk's geometry, positioned at
// Offset in world voxels.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Key             [3]int `json:"key"`
	Offset          [3]int `json:"offset"`
	VertexCount     int    `json:"vertex_count"`
	IndexCount      int    `json:"index_count"`
	Encoding        string `json:"encoding"`
	Mesh            string `json:"mesh"`
}

// CHUNK_DROP (server -> client): remove the chunk's rendered
// representation. Voxel data stays resident server-side.
type ChunkDropMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Key             [3]int `json:"key"`
}

// VOXELS_GET (client -> server): debug occupancy dump request. Never
// triggers generation; non-resident chunks answer resident=false.
type VoxelsGetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Key             [3]int `json:"key"`
}

// VOXELS (server -> client). Encoding and Data are present only when
// the chunk is resident.
type VoxelsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Key             [3]int `json:"key"`
	Resident        bool   `json:"resident"`
	Encoding        string `json:"encoding,omitempty"`
	Data            string `json:"data,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
