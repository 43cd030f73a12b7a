package statekit

import (
	"context"
	"sync"
)

// Storage is a string-keyed blob store used to mirror the state tree.
//
// Implementations persist serialized JSON under a single key per store.
// They must be safe for concurrent use: the persistence listener may run
// from any goroutine that mutates the store.
type Storage interface {
	// Get retrieves the value stored under key. The boolean reports
	// whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, creating or overwriting as needed.
	// A nil value is an invalid-argument error.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the value stored under key. Missing keys are ignored.
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is an in-process Storage backed by a map.
// Used by tests and as the demo default when no database is configured.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get retrieves the value stored under key.
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key.
func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return invalidArgf("storage value must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

// Remove deletes the value stored under key.
func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
