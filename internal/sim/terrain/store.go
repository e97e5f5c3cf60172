package terrain

import "sync"

// Store owns every resident grid, keyed by chunk coordinate. Reads are
// concurrent; generation happens under the write lock so a key is
// generated at most once while resident, no matter how many callers
// race on the miss.
type Store struct {
	gen Generator

	mu    sync.RWMutex
	grids map[ChunkKey]*Grid
}

func NewStore(gen Generator) *Store {
	return &Store{
		gen:   gen,
		grids: map[ChunkKey]*Grid{},
	}
}

// Get returns the resident grid for key, if any. Never generates.
func (s *Store) Get(key ChunkKey) (*Grid, bool) {
	s.mu.RLock()
	g, ok := s.grids[key]
	s.mu.RUnlock()
	return g, ok
}

// GetOrGenerate returns the resident grid for key, generating and
// inserting it first on a miss. Repeated calls without an intervening
// Evict return the same grid.
func (s *Store) GetOrGenerate(key ChunkKey) *Grid {
	s.mu.RLock()
	g, ok := s.grids[key]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.grids[key]; ok {
		return g
	}
	g = s.gen.Generate(key)
	s.grids[key] = g
	return g
}

// Evict removes the grid for key. Evicting an absent key is a no-op.
func (s *Store) Evict(key ChunkKey) {
	s.mu.Lock()
	delete(s.grids, key)
	s.mu.Unlock()
}

// Len reports the number of resident grids.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.grids)
	s.mu.RUnlock()
	return n
}
