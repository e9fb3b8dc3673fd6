package draft

import (
	"context"
	"sync"
)

// MemoryMedium keeps drafts in process memory. Used when no MONGO_URI is set
// and in tests.
type MemoryMedium struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{values: make(map[string]string)}
}

func (m *MemoryMedium) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryMedium) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryMedium) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
