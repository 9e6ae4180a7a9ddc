package store

import (
	"context"
	"sync"
)

// Memory is an in-process store for single-node deployments and tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]int
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]int)}
}

func (m *Memory) Set(ctx context.Context, key string, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = seconds
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seconds, ok := m.values[key]
	return seconds, ok, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
