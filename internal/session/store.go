package session

import (
	"sync"

	"github.com/avatarspeech/capture-client/internal/upload"
)

// Store holds the most recent pipeline result for the animation consumer.
// It is overwritten on every successful run and cleared when a new session
// starts or a run fails, so stale results never linger.
type Store struct {
	mu     sync.RWMutex
	result *upload.Result
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the stored result.
func (s *Store) Set(result *upload.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
}

// Latest returns the most recent result, or false if none is stored.
func (s *Store) Latest() (*upload.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return nil, false
	}
	return s.result, true
}
