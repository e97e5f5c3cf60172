package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelstream.dev/internal/sim/mesh"
)

type Config struct {
	TickRateHz     int
	RenderDistance int

	// Workers sizes the generation/mesh pool. Zero runs both inline on
	// the tick goroutine, the synchronous baseline the deterministic
	// tests rely on.
	Workers int

	MeshMode mesh.Mode

	Seed  int64
	Noise NoiseConfig

	MoveSpeed float64
	SpawnPos  mgl64.Vec3

	Viewer ViewerConfig
}

type NoiseConfig struct {
	Frequency float64
	Amplitude float64
	Offset    float64
}

type ViewerConfig struct {
	// MaxChunkMsgsPerTick caps how many chunk frames one session
	// receives per tick, so a late joiner backfills gradually.
	MaxChunkMsgsPerTick int
	SendBuffer          int
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.RenderDistance <= 0 {
		c.RenderDistance = 3
	}
	if c.MeshMode == "" {
		c.MeshMode = mesh.ModeCulled
	}
	if c.Noise.Frequency == 0 {
		c.Noise.Frequency = 0.01
	}
	if c.Noise.Amplitude == 0 {
		c.Noise.Amplitude = 32
	}
	if c.Noise.Offset == 0 {
		c.Noise.Offset = 32
	}
	if c.MoveSpeed == 0 {
		c.MoveSpeed = 5.0
	}
	if c.SpawnPos == (mgl64.Vec3{}) {
		c.SpawnPos = mgl64.Vec3{0, 34, 0}
	}
	if c.Viewer.MaxChunkMsgsPerTick <= 0 {
		c.Viewer.MaxChunkMsgsPerTick = 32
	}
	if c.Viewer.SendBuffer <= 0 {
		c.Viewer.SendBuffer = 256
	}
}
