package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	RenderDistance int `yaml:"render_distance"`
	Workers        int `yaml:"workers"`

	MeshMode string `yaml:"mesh_mode"`

	Seed  int64 `yaml:"seed"`
	Noise Noise `yaml:"noise"`

	MoveSpeed float64    `yaml:"move_speed"`
	SpawnPos  [3]float64 `yaml:"spawn_pos"`

	Viewer Viewer `yaml:"viewer"`
}

type Noise struct {
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
	Offset    float64 `yaml:"offset"`
}

type Viewer struct {
	MaxChunkMsgsPerTick int `yaml:"max_chunk_msgs_per_tick"`
	SendBuffer          int `yaml:"send_buffer"`
}

// Default returns the shipped configuration: the terrain constants the
// render client was built against, a 20 Hz tick and a culled mesher.
func Default() Tuning {
	var t Tuning
	t.ApplyDefaults()
	return t
}

func (t *Tuning) ApplyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	if t.RenderDistance <= 0 {
		t.RenderDistance = 3
	}
	if t.Workers <= 0 {
		t.Workers = 4
	}
	if t.MeshMode == "" {
		t.MeshMode = "culled"
	}
	if t.Noise.Frequency == 0 {
		t.Noise.Frequency = 0.01
	}
	if t.Noise.Amplitude == 0 {
		t.Noise.Amplitude = 32
	}
	if t.Noise.Offset == 0 {
		t.Noise.Offset = 32
	}
	if t.MoveSpeed == 0 {
		t.MoveSpeed = 5.0
	}
	if t.SpawnPos == ([3]float64{}) {
		t.SpawnPos = [3]float64{0, 34, 0}
	}
	if t.Viewer.MaxChunkMsgsPerTick <= 0 {
		t.Viewer.MaxChunkMsgsPerTick = 32
	}
	if t.Viewer.SendBuffer <= 0 {
		t.Viewer.SendBuffer = 256
	}
}

func (t *Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.RenderDistance <= 0 || t.RenderDistance > 16 {
		return fmt.Errorf("render_distance out of range: %d", t.RenderDistance)
	}
	if t.Workers < 1 || t.Workers > 256 {
		return fmt.Errorf("workers out of range: %d", t.Workers)
	}
	switch t.MeshMode {
	case "naive", "culled":
	default:
		return fmt.Errorf("unknown mesh_mode %q", t.MeshMode)
	}
	if t.Noise.Frequency <= 0 {
		return fmt.Errorf("noise.frequency must be positive: %v", t.Noise.Frequency)
	}
	if t.MoveSpeed <= 0 {
		return fmt.Errorf("move_speed must be positive: %v", t.MoveSpeed)
	}
	return nil
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
