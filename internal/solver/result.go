package solver

import (
	"fmt"
	"sync"
	"time"
)

// GraphResult is the recorded outcome of one task within one run. It is
// created and written exclusively by the solver and must be treated as
// read-only once finalized.
type GraphResult struct {
	// Key is the task identity this result belongs to.
	Key string
	// State is the terminal state reported by the status check or the
	// processing run.
	State ActionState
	// Outputs is the opaque payload produced by the task.
	Outputs Outputs
	// Processed is false when the result came from a status short-circuit.
	Processed bool
	// Error is set for failed and cancelled tasks.
	Error error
	// InputVersion tags the result with the task's input fingerprint so
	// callers can detect staleness.
	InputVersion string
	// BatchID identifies the batch whose submission launched the task.
	BatchID string
	// StartedAt and CompletedAt bracket the status check plus processing.
	StartedAt   time.Time
	CompletedAt time.Time
	// Dependencies holds the results this task consumed, keyed by task key.
	Dependencies Results
}

// ResultStore is the in-memory, per-run map from task key to outcome.
// Entries are write-once; a second Put for the same key is a programmer
// error and is rejected.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*GraphResult
}

// NewResultStore creates an empty store scoped to a single run.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*GraphResult)}
}

// Get returns the recorded result for key, or nil if none exists yet.
func (s *ResultStore) Get(key string) *GraphResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[key]
}

// Put records a finalized result. It returns an error if a result for the
// same key was already recorded, enforcing the at-most-one-outcome-per-key
// invariant.
func (s *ResultStore) Put(key string, result *GraphResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[key]; exists {
		return fmt.Errorf("result for %q already recorded", key)
	}
	s.results[key] = result
	return nil
}

// GetAll returns a copy of the full key->result map.
func (s *ResultStore) GetAll() map[string]*GraphResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*GraphResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// subMap builds the dependency-result view for one task, restricted to
// the given keys.
func (s *ResultStore) subMap(keys []string) Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Results, len(keys))
	for _, k := range keys {
		if r, ok := s.results[k]; ok {
			out[k] = r
		}
	}
	return out
}
