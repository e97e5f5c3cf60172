// Command replay re-simulates a recorded tick log from genesis and
// verifies the per-tick world digests. The log must come from a run
// with workers=0: with a worker pool, mesh completion timing shifts
// spawn ticks and the digests are not reproducible.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/zstd"

	"voxelstream.dev/internal/protocol"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
	"voxelstream.dev/internal/sim/tuning"
	"voxelstream.dev/internal/sim/world"
)

func main() {
	var (
		logDir     = flag.String("log-dir", "", "tick log directory (the server's -log-dir)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning.yaml the recorded run used")
		seed       = flag.Int64("seed", 0, "world seed override (default: tuning seed)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying digests from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *logDir == "" {
		fmt.Fprintln(os.Stderr, "missing -log-dir")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Default()
		} else {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			tune.Seed = *seed
		}
	})

	w, err := world.New(world.Config{
		TickRateHz:     tune.TickRateHz,
		RenderDistance: tune.RenderDistance,
		Workers:        0, // replay always runs inline
		MeshMode:       mesh.Mode(tune.MeshMode),
		Seed:           tune.Seed,
		Noise: world.NoiseConfig{
			Frequency: tune.Noise.Frequency,
			Amplitude: tune.Noise.Amplitude,
			Offset:    tune.Noise.Offset,
		},
		MoveSpeed: tune.MoveSpeed,
		SpawnPos:  mgl64.Vec3{tune.SpawnPos[0], tune.SpawnPos[1], tune.SpawnPos[2]},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	w.SetRenderer(&nullRenderer{})

	files, err := listTickFiles(filepath.Join(*logDir, "ticks"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found under", *logDir)
		os.Exit(1)
	}

	fmt.Printf("replaying seed=%d mesh=%s tick=%dHz radius=%d files=%d\n",
		tune.Seed, tune.MeshMode, tune.TickRateHz, tune.RenderDistance, len(files))

	var checked uint64
	for _, path := range files {
		if err := replayFile(w, path, *fromTick, *toTick, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && w.CurrentTick() > *toTick {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (final tick=%d)\n", checked, w.CurrentTick())
}

// nullRenderer drops geometry; replay only needs the simulation state.
type nullRenderer struct{ next uint64 }

func (r *nullRenderer) Spawn(terrain.ChunkKey, [3]int, *mesh.Buffers) world.Handle {
	r.next++
	return world.Handle(r.next)
}

func (r *nullRenderer) Despawn(world.Handle) {}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(w *world.World, path string, verifyFrom, toTick uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
		}

		inputs := make([]world.InputEnvelope, 0, len(entry.Inputs))
		for _, in := range entry.Inputs {
			inputs = append(inputs, world.InputEnvelope{Msg: protocol.InputMsg{
				Yaw:   in.Yaw,
				Pitch: in.Pitch,
				Axes:  protocol.Axes{Forward: in.Forward, Strafe: in.Strafe, Up: in.Up},
			}})
		}

		tick, digest := w.StepOnce(inputs)

		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}

		if tick >= verifyFrom {
			*checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
	}
	return sc.Err()
}
