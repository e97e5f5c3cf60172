package world

// WorldMetrics is a thread-safe read-only view of key world runtime
// signals. It is updated from the world loop goroutine and read from
// HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Viewers        int `json:"viewers"`
	LoadedChunks   int `json:"loaded_chunks"`
	ResidentChunks int `json:"resident_chunks"`
	QueueDepth     int `json:"queue_depth"`

	Pos    [3]float64 `json:"pos"`
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
	Center [3]int     `json:"center"`

	SpawnedTotal   uint64 `json:"spawned_total"`
	DespawnedTotal uint64 `json:"despawned_total"`
	EnqueuedTotal  uint64 `json:"enqueued_total"`
	BuiltTotal     uint64 `json:"built_total"`
	PurgedTotal    uint64 `json:"purged_total"`

	GenNsTotal  int64 `json:"gen_ns_total"`
	MeshNsTotal int64 `json:"mesh_ns_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inputs int `json:"inputs"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Voxels int `json:"voxels"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
