// Package statuscache stores the last successfully processed input
// version per task key. Action status handlers consult it to decide
// whether a target is already satisfied; the solver itself never touches
// it.
package statuscache

import (
	"context"
	"sync"
)

// Cache is the persistent status backend consulted inside getStatus and
// updated after a successful process.
type Cache interface {
	// Lookup returns the recorded input version for key. ok is false on a
	// miss; a miss is a normal data condition, not an error.
	Lookup(ctx context.Context, key string) (version string, ok bool, err error)
	// Record stores the input version for key.
	Record(ctx context.Context, key, version string) error
}

// Memory is the in-process Cache used for local runs and tests.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]string
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{versions: make(map[string]string)}
}

// Lookup implements Cache.
func (m *Memory) Lookup(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[key]
	return v, ok, nil
}

// Record implements Cache.
func (m *Memory) Record(ctx context.Context, key, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[key] = version
	return nil
}
