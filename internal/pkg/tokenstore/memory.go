// internal/pkg/tokenstore/memory.go
package tokenstore

import (
	"context"
	"sync"
)

// Memory holds a single token in process memory. The key is ignored and the
// token is lost when the owner goes away.
type Memory struct {
	mu    sync.RWMutex
	token string
	set   bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context, _ string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.set, nil
}

func (m *Memory) Set(_ context.Context, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

func (m *Memory) Remove(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

// Map is keyed process memory.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

func (m *Map) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Map) Set(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = token
	return nil
}

func (m *Map) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
