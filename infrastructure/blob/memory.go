package blob

import (
	"context"
	"sync"

	"path-backend/application/ports"
	pkgerrors "path-backend/pkg/errors"
)

// Memory is an in-process blob store
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ ports.BlobStore = (*Memory)(nil)

// NewMemory creates an empty in-process blob store
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, pkgerrors.ContentNotFound(key)
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored blobs
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
