package elements

import (
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current element set.
type Store struct {
	set atomic.Pointer[Set]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current set, or nil if none has been loaded.
func (s *Store) Get() *Set {
	return s.set.Load()
}

// Set atomically replaces the current set.
func (s *Store) Set(set *Set) {
	s.set.Store(set)
}

// AgeSeconds returns the age of the current set in seconds.
// Returns -1 if no set is loaded.
func (s *Store) AgeSeconds() float64 {
	set := s.set.Load()
	if set == nil {
		return -1
	}
	return time.Since(set.FetchedAt).Seconds()
}
