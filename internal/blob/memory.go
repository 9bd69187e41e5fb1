package blob

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and throwaway dev runs.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// PutErr, when set, is returned by every Put.
	PutErr error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.PutErr != nil {
		return "", m.PutErr
	}
	if err := validKey(key); err != nil {
		return "", err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.blobs[key] = cp
	m.mu.Unlock()

	return "memory://" + key, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Len reports how many blobs are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
