package memory

import (
	"context"
	"sync"

	"github.com/wstszx/LicStats/internal/health"
	"github.com/wstszx/LicStats/internal/storage"
)

// Store keeps health events and collector state in process memory.
// Everything is lost on restart.
type Store struct {
	health *healthStore
	state  *stateStore
}

// Open creates an empty in-memory store.
func Open() *Store {
	return &Store{
		health: &healthStore{ring: health.NewRing(health.Capacity)},
		state:  &stateStore{},
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Health returns the HealthStore implementation
func (s *Store) Health() storage.HealthStore {
	return s.health
}

// State returns the StateStore implementation
func (s *Store) State() storage.StateStore {
	return s.state
}

type healthStore struct {
	ring *health.Ring
}

func (h *healthStore) Append(ctx context.Context, rec health.Record) error {
	h.ring.Add(rec)
	return nil
}

func (h *healthStore) List(ctx context.Context, limit int) ([]health.Record, error) {
	return h.ring.Last(limit), nil
}

type stateStore struct {
	mu    sync.RWMutex
	state *storage.CollectorState
}

func (s *stateStore) Get(ctx context.Context) (*storage.CollectorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	state := *s.state
	return &state, nil
}

func (s *stateStore) Put(ctx context.Context, state storage.CollectorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}
