// Package memory implements the database.Storage interface with a map. It
// is used by tests and by nodes that don't need to survive a restart.
package memory

import (
	"sync"

	"github.com/marabu/node/foundation/blockchain/database"
)

// Memory represents an in memory key/value store.
type Memory struct {
	mu sync.RWMutex
	kv map[string][]byte
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		kv: make(map[string][]byte),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Exists reports whether the key is stored.
func (m *Memory) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.kv[key]
	return exists, nil
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.kv[key]
	if !exists {
		return nil, database.ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

// Put stores a copy of the value under key.
func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes the key.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, key)
	return nil
}
