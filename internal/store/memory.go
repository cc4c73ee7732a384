package store

import (
	"bytes"
	"context"
	"sync"
)

// Memory keeps everything in a map. It is the default for tests and for
// single-process deployments that do not need durability.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Apply(_ context.Context, batch []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range batch {
		m.data[w.Key] = bytes.Clone(w.Value)
	}
	return nil
}

// Len is the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }
