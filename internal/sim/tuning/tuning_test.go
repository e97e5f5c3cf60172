package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	d := Default()
	if d.TickRateHz != 20 {
		t.Fatalf("TickRateHz=%d want=20", d.TickRateHz)
	}
	if d.RenderDistance != 3 {
		t.Fatalf("RenderDistance=%d want=3", d.RenderDistance)
	}
	if d.MeshMode != "culled" {
		t.Fatalf("MeshMode=%q want=culled", d.MeshMode)
	}
	if d.Noise.Frequency != 0.01 || d.Noise.Amplitude != 32 || d.Noise.Offset != 32 {
		t.Fatalf("noise defaults wrong: %+v", d.Noise)
	}
	if d.MoveSpeed != 5.0 {
		t.Fatalf("MoveSpeed=%v want=5.0", d.MoveSpeed)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "render_distance: 5\nseed: 42\nnoise:\n  frequency: 0.02\n  amplitude: 10\n  offset: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RenderDistance != 5 || got.Seed != 42 {
		t.Fatalf("explicit values lost: %+v", got)
	}
	if got.TickRateHz != 20 || got.Workers != 4 {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.Noise.Amplitude != 10 || got.Noise.Offset != 10 {
		t.Fatalf("noise overrides lost: %+v", got.Noise)
	}
}

func TestLoadRejectsBadMeshMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("mesh_mode: greedy\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("want error for unknown mesh_mode")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("want error for missing file")
	}
}
