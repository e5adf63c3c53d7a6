package station

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/walkertrack/internal/metrics"
)

// Store provides thread-safe access to the current station registry.
type Store struct {
	registry atomic.Pointer[Registry]
	mu       sync.Mutex // serializes reloads
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current registry, or nil if none has been loaded.
func (s *Store) Get() *Registry {
	return s.registry.Load()
}

// Set atomically replaces the current registry.
func (s *Store) Set(r *Registry) {
	s.registry.Store(r)
	metrics.SetStationsLoaded(len(r.Stations))
}

// LoadedAt returns when the current registry was loaded, or the zero time.
// Consumers compare it to detect a change of registry.
func (s *Store) LoadedAt() time.Time {
	r := s.registry.Load()
	if r == nil {
		return time.Time{}
	}
	return r.LoadedAt
}

// AgeSeconds returns the age of the current registry in seconds.
// Returns -1 if no registry is loaded.
func (s *Store) AgeSeconds() float64 {
	r := s.registry.Load()
	if r == nil {
		return -1
	}
	return time.Since(r.LoadedAt).Seconds()
}

// Reload loads src and swaps it in. On failure the current registry is kept.
func (s *Store) Reload(ctx context.Context, src *Source) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.Set(r)
	return r, nil
}
