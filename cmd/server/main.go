package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream.dev/internal/persistence/indexdb"
	persistlog "voxelstream.dev/internal/persistence/log"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/tuning"
	"voxelstream.dev/internal/sim/world"
	"voxelstream.dev/internal/transport/viewer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		logDir     = flag.String("log-dir", "", "tick telemetry log directory (empty to disable)")
		indexPath  = flag.String("index-db", "", "sqlite tick index path (empty to disable)")
		seed       = flag.Int64("seed", 0, "world seed override (default: tuning seed)")
		workers    = flag.Int("workers", 0, "worker pool override; 0 meshes inline for replayable tick logs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	// CLI overrides beat the tuning file. -workers 0 is only reachable
	// here: the tuning file floor is 1.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			tune.Seed = *seed
		case "workers":
			if *workers < 0 || *workers > 256 {
				logger.Fatalf("-workers out of range: %d", *workers)
			}
			tune.Workers = *workers
		}
	})

	w, err := world.New(world.Config{
		TickRateHz:     tune.TickRateHz,
		RenderDistance: tune.RenderDistance,
		Workers:        tune.Workers,
		MeshMode:       mesh.Mode(tune.MeshMode),
		Seed:           tune.Seed,
		Noise: world.NoiseConfig{
			Frequency: tune.Noise.Frequency,
			Amplitude: tune.Noise.Amplitude,
			Offset:    tune.Noise.Offset,
		},
		MoveSpeed: tune.MoveSpeed,
		SpawnPos:  mgl64.Vec3{tune.SpawnPos[0], tune.SpawnPos[1], tune.SpawnPos[2]},
		Viewer: world.ViewerConfig{
			MaxChunkMsgsPerTick: tune.Viewer.MaxChunkMsgsPerTick,
			SendBuffer:          tune.Viewer.SendBuffer,
		},
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	logger.Printf("world seed=%d mesh=%s tick=%dHz radius=%d workers=%d",
		tune.Seed, tune.MeshMode, tune.TickRateHz, tune.RenderDistance, tune.Workers)

	// Optional telemetry sinks (do not affect sim determinism).
	var fileLog *persistlog.TickLogger
	if *logDir != "" {
		fileLog = persistlog.NewTickLogger(*logDir)
	}
	var idx *indexdb.SQLiteIndex
	if *indexPath != "" {
		idx, err = indexdb.OpenSQLite(*indexPath)
		if err != nil {
			logger.Fatalf("open tick index: %v", err)
		}
		if err := idx.RecordRun(indexdb.RunInfo{
			Seed:           tune.Seed,
			MeshMode:       tune.MeshMode,
			TickRateHz:     tune.TickRateHz,
			RenderDistance: tune.RenderDistance,
			Workers:        tune.Workers,
		}); err != nil {
			logger.Printf("tick index: record run: %v", err)
		}
	}
	if fileLog != nil || idx != nil {
		var ml multiTickLogger
		if fileLog != nil {
			ml.a = fileLog
		}
		if idx != nil {
			ml.b = idx
		}
		w.SetTickLogger(ml)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))

	if envBool("VS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only state endpoint (read model; does not touch the loop).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (VS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/viewer", viewer.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Stop the loop before the telemetry sinks so the final ticks land.
	cancel()
	<-worldDone
	if fileLog != nil {
		_ = fileLog.Close()
	}
	if idx != nil {
		_ = idx.Close()
	}
	logger.Printf("shutdown complete at tick %d", w.CurrentTick())
}

func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelstream_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelstream_world_tick %d\n", tick)

		fmt.Fprintf(rw, "# HELP voxelstream_viewers Currently connected viewer sessions.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_viewers gauge\n")
		fmt.Fprintf(rw, "voxelstream_viewers %d\n", m.Viewers)

		fmt.Fprintf(rw, "# HELP voxelstream_chunks_loaded Chunks currently spawned for rendering.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_chunks_loaded gauge\n")
		fmt.Fprintf(rw, "voxelstream_chunks_loaded %d\n", m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP voxelstream_chunks_generated_total Chunks generated since start; voxel data is never evicted.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_chunks_generated_total counter\n")
		fmt.Fprintf(rw, "voxelstream_chunks_generated_total %d\n", m.ResidentChunks)

		fmt.Fprintf(rw, "# HELP voxelstream_chunk_spawns_total Chunk spawn operations since start.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_chunk_spawns_total counter\n")
		fmt.Fprintf(rw, "voxelstream_chunk_spawns_total %d\n", m.SpawnedTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_chunk_despawns_total Chunk despawn operations since start.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_chunk_despawns_total counter\n")
		fmt.Fprintf(rw, "voxelstream_chunk_despawns_total %d\n", m.DespawnedTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_mesh_jobs_queued Generation/mesh jobs waiting in the scheduler.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_mesh_jobs_queued gauge\n")
		fmt.Fprintf(rw, "voxelstream_mesh_jobs_queued %d\n", m.QueueDepth)

		fmt.Fprintf(rw, "# HELP voxelstream_mesh_jobs_enqueued_total Jobs handed to the scheduler since start.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_mesh_jobs_enqueued_total counter\n")
		fmt.Fprintf(rw, "voxelstream_mesh_jobs_enqueued_total %d\n", m.EnqueuedTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_mesh_jobs_built_total Jobs completed by the worker pool since start.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_mesh_jobs_built_total counter\n")
		fmt.Fprintf(rw, "voxelstream_mesh_jobs_built_total %d\n", m.BuiltTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_mesh_jobs_purged_total Queued jobs dropped after leaving streaming range.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_mesh_jobs_purged_total counter\n")
		fmt.Fprintf(rw, "voxelstream_mesh_jobs_purged_total %d\n", m.PurgedTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_terrain_gen_ns_total Nanoseconds spent generating voxel grids.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_terrain_gen_ns_total counter\n")
		fmt.Fprintf(rw, "voxelstream_terrain_gen_ns_total %d\n", m.GenNsTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_mesh_build_ns_total Nanoseconds spent building chunk meshes.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_mesh_build_ns_total counter\n")
		fmt.Fprintf(rw, "voxelstream_mesh_build_ns_total %d\n", m.MeshNsTotal)

		fmt.Fprintf(rw, "# HELP voxelstream_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelstream_world_queue_depth{queue=%q} %d\n", "inputs", m.QueueDepths.Inputs)
		fmt.Fprintf(rw, "voxelstream_world_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "voxelstream_world_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "voxelstream_world_queue_depth{queue=%q} %d\n", "voxels", m.QueueDepths.Voxels)

		fmt.Fprintf(rw, "# HELP voxelstream_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_world_step_ms gauge\n")
		fmt.Fprintf(rw, "voxelstream_world_step_ms %.3f\n", m.StepMS)

		writeIndexMetrics(rw, idx)
	}
}

func writeIndexMetrics(rw http.ResponseWriter, idx *indexdb.SQLiteIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP voxelstream_index_queue_depth Current tick index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelstream_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelstream_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelstream_index_queue_capacity Tick index write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE voxelstream_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "voxelstream_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP voxelstream_index_dropped_ticks_total Tick rows dropped because the queue was saturated.\n")
	fmt.Fprintf(rw, "# TYPE voxelstream_index_dropped_ticks_total counter\n")
	fmt.Fprintf(rw, "voxelstream_index_dropped_ticks_total %d\n", s.DropTickTotal)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

// multiTickLogger fans tick entries out to the JSONL log and the
// sqlite index; either side may be absent.
type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}
