package igrf

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current model set. Readers get
// the set through an atomic pointer; writers swap in a complete replacement
// (e.g. after fetching a newer coefficient file).
type Store struct {
	set atomic.Pointer[ModelSet]
	mu  sync.Mutex // serializes fetch/reload operations
}

// NewStore creates a Store holding the given initial set, which may be nil.
func NewStore(initial *ModelSet) *Store {
	s := &Store{}
	if initial != nil {
		s.set.Store(initial)
	}
	return s
}

// Get returns the current model set, or nil if none has been loaded.
func (s *Store) Get() *ModelSet {
	return s.set.Load()
}

// Set atomically replaces the current model set.
func (s *Store) Set(set *ModelSet) {
	s.set.Store(set)
}

// AgeSeconds returns the age of the current set's load time in seconds, or
// -1 if no set is loaded or the set carries no load time.
func (s *Store) AgeSeconds() float64 {
	set := s.set.Load()
	if set == nil || set.LoadedAt.IsZero() {
		return -1
	}
	return time.Since(set.LoadedAt).Seconds()
}

// Lock acquires the reload mutex for serializing fetch operations.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the reload mutex.
func (s *Store) Unlock() { s.mu.Unlock() }
