package world

import (
	"sync"
	"sync/atomic"
	"time"

	"voxelstream.dev/internal/sim/mathx"
	"voxelstream.dev/internal/sim/mesh"
	"voxelstream.dev/internal/sim/terrain"
)

// meshResult is one finished generate+mesh job. The world loop decides
// whether the chunk is still wanted when it drains the channel.
type meshResult struct {
	key     terrain.ChunkKey
	buffers *mesh.Buffers
	genNs   int64
	meshNs  int64
}

// scheduler runs chunk generation and meshing on a bounded worker pool.
// Jobs are keyed by chunk and deduplicated; priority is decided at
// dequeue time from the center current at that moment, so a moving
// observer reorders work that is already queued. Queued keys that have
// fallen outside the streaming radius are discarded at dequeue instead
// of being built.
type scheduler struct {
	store   *terrain.Store
	builder *mesh.Builder
	radius  int

	mu     sync.Mutex
	queued map[terrain.ChunkKey]struct{}
	center terrain.ChunkKey

	wake    chan struct{}
	results chan meshResult
	stopped chan struct{}
	wg      sync.WaitGroup

	enqueuedTotal atomic.Uint64
	builtTotal    atomic.Uint64
	purgedTotal   atomic.Uint64
}

func newScheduler(store *terrain.Store, builder *mesh.Builder, workers, radius int) *scheduler {
	if workers <= 0 {
		workers = 1
	}
	s := &scheduler{
		store:   store,
		builder: builder,
		radius:  radius,
		queued:  map[terrain.ChunkKey]struct{}{},
		wake:    make(chan struct{}, 1024),
		results: make(chan meshResult, 256),
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *scheduler) stop() {
	close(s.stopped)
	s.wg.Wait()
}

// setCenter records the observer's current chunk for dequeue ordering.
func (s *scheduler) setCenter(c terrain.ChunkKey) {
	s.mu.Lock()
	s.center = c
	s.mu.Unlock()
}

// enqueue adds key unless it is already queued. Returns whether the key
// was newly added.
func (s *scheduler) enqueue(key terrain.ChunkKey) bool {
	s.mu.Lock()
	if _, ok := s.queued[key]; ok {
		s.mu.Unlock()
		return false
	}
	s.queued[key] = struct{}{}
	s.mu.Unlock()

	s.enqueuedTotal.Add(1)
	select {
	case s.wake <- struct{}{}:
	default:
		// Workers are saturated with wake tokens already.
	}
	return true
}

func (s *scheduler) queueDepth() int {
	s.mu.Lock()
	n := len(s.queued)
	s.mu.Unlock()
	return n
}

// pickLocked pops the queued key nearest to the current center,
// breaking ties by key order. Keys outside the radius are dropped here:
// the world re-enqueues anything it still wants every tick, so a
// discarded key that matters again comes back on its own.
func (s *scheduler) pickLocked() (terrain.ChunkKey, bool) {
	var (
		best     terrain.ChunkKey
		bestDist int
		found    bool
	)
	for key := range s.queued {
		d := mathx.Chebyshev(key.CX, key.CY, key.CZ, s.center.CX, s.center.CY, s.center.CZ)
		if d > s.radius {
			delete(s.queued, key)
			s.purgedTotal.Add(1)
			continue
		}
		if !found || d < bestDist || (d == bestDist && key.Less(best)) {
			best = key
			bestDist = d
			found = true
		}
	}
	if found {
		delete(s.queued, best)
	}
	return best, found
}

func (s *scheduler) next() (terrain.ChunkKey, bool) {
	for {
		select {
		case <-s.stopped:
			return terrain.ChunkKey{}, false
		default:
		}

		s.mu.Lock()
		key, ok := s.pickLocked()
		s.mu.Unlock()
		if ok {
			return key, true
		}

		select {
		case <-s.wake:
		case <-s.stopped:
			return terrain.ChunkKey{}, false
		}
	}
}

func (s *scheduler) worker() {
	defer s.wg.Done()
	for {
		key, ok := s.next()
		if !ok {
			return
		}

		genStart := time.Now()
		grid := s.store.GetOrGenerate(key)
		genNs := time.Since(genStart).Nanoseconds()

		meshStart := time.Now()
		buffers := s.builder.Build(grid)
		meshNs := time.Since(meshStart).Nanoseconds()

		s.builtTotal.Add(1)
		select {
		case s.results <- meshResult{key: key, buffers: &buffers, genNs: genNs, meshNs: meshNs}:
		case <-s.stopped:
			return
		}
	}
}
