package world

import (
	"testing"

	"voxelstream.dev/internal/protocol"
)

func TestDeterminism_ScriptedInputsSameDigest(t *testing.T) {
	cfg := Config{
		TickRateHz:     10,
		RenderDistance: 2,
		Workers:        0,
	}
	w1 := syncWorld(t, cfg)
	w2 := syncWorld(t, cfg)
	w1.SetRenderer(newRecordRenderer())
	w2.SetRenderer(newRecordRenderer())

	script := func(tick uint64) []InputEnvelope {
		switch tick {
		case 3:
			return []InputEnvelope{inputEnv(0.7, 0, 1, 0, 0)}
		case 12:
			return []InputEnvelope{inputEnv(0.7, -0.3, 1, 1, 0)}
		case 25:
			return []InputEnvelope{inputEnv(0, 0, 0, 0, 1)}
		}
		return nil
	}

	for tick := uint64(0); tick < 40; tick++ {
		t1, d1 := w1.StepOnce(script(tick))
		t2, d2 := w2.StepOnce(script(tick))
		if t1 != tick || t2 != tick {
			t.Fatalf("tick drift: %d vs %d at %d", t1, t2, tick)
		}
		if d1 != d2 {
			t.Fatalf("digest mismatch at tick %d: %s vs %s", tick, d1, d2)
		}
	}

	if w1.observer.Pos != w2.observer.Pos {
		t.Fatalf("observer position diverged: %v vs %v", w1.observer.Pos, w2.observer.Pos)
	}
	if len(w1.loaded) != len(w2.loaded) {
		t.Fatalf("loaded set diverged: %d vs %d", len(w1.loaded), len(w2.loaded))
	}
}

func TestDeterminism_DigestChangesWithMovement(t *testing.T) {
	w := syncWorld(t, Config{TickRateHz: 10, RenderDistance: 1})
	w.SetRenderer(newRecordRenderer())

	_, d0 := w.StepOnce(nil)
	_, d1 := w.StepOnce(nil)
	if d0 == d1 {
		t.Fatalf("digest must change with the tick counter")
	}

	_, d2 := w.StepOnce([]InputEnvelope{inputEnv(0, 0, 1, 0, 0)})
	_, d3 := w.StepOnce(nil)
	if d2 == d3 {
		t.Fatalf("digest must change while the observer moves")
	}
}

type captureLogger struct{ entries []TickLogEntry }

func (c *captureLogger) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

// A recorded log must replay to the same digests through a fresh
// world; this is the contract cmd/replay relies on.
func TestDeterminism_TickLogReplaysToSameDigests(t *testing.T) {
	cfg := Config{
		TickRateHz:     10,
		RenderDistance: 1,
		Workers:        0,
	}

	rec := syncWorld(t, cfg)
	rec.SetRenderer(newRecordRenderer())
	logged := &captureLogger{}
	rec.SetTickLogger(logged)

	script := func(tick uint64) []InputEnvelope {
		switch {
		case tick >= 2 && tick < 10:
			return []InputEnvelope{inputEnv(0.4, 0, 1, 0, 0)}
		case tick == 10:
			// Two inputs in one tick; the last one wins, both are logged.
			return []InputEnvelope{
				inputEnv(0.4, 0, 1, 0, 0),
				inputEnv(1.9, 0.2, 0, 1, 0),
			}
		case tick > 10 && tick < 20:
			return []InputEnvelope{inputEnv(1.9, 0.2, 0, 1, 0)}
		}
		return nil
	}
	for tick := uint64(0); tick < 25; tick++ {
		rec.StepOnce(script(tick))
	}
	if len(logged.entries) != 25 {
		t.Fatalf("captured entries: got %d want 25", len(logged.entries))
	}

	replay := syncWorld(t, cfg)
	replay.SetRenderer(newRecordRenderer())
	for _, entry := range logged.entries {
		ins := make([]InputEnvelope, 0, len(entry.Inputs))
		for _, in := range entry.Inputs {
			ins = append(ins, InputEnvelope{Msg: protocol.InputMsg{
				Yaw:   in.Yaw,
				Pitch: in.Pitch,
				Axes:  protocol.Axes{Forward: in.Forward, Strafe: in.Strafe, Up: in.Up},
			}})
		}
		tick, digest := replay.StepOnce(ins)
		if tick != entry.Tick {
			t.Fatalf("tick drift: stepped %d, log says %d", tick, entry.Tick)
		}
		if digest != entry.Digest {
			t.Fatalf("digest mismatch at tick %d: got %s want %s", tick, digest, entry.Digest)
		}
	}
	if rec.observer.Pos != replay.observer.Pos {
		t.Fatalf("observer diverged: %v vs %v", rec.observer.Pos, replay.observer.Pos)
	}
}
