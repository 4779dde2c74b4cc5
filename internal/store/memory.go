package store

import (
	"context"
	"sync"

	"dexanalytics/internal/domain"

	"gitlab.com/nevasik7/alerting/logger"
)

// MemoryStore keeps entities in process memory; for dev (one instance) and tests
type MemoryStore struct {
	log   logger.Logger
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryStore(log logger.Logger) *MemoryStore {
	return &MemoryStore{
		log:   log,
		items: make(map[string][]byte, 1024),
	}
}

func (m *MemoryStore) Get(_ context.Context, kind domain.Kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.items[entityKey(kind, id)]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, kind domain.Kind, id string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.items[entityKey(kind, id)] = buf
	m.mu.Unlock()

	m.log.Debugf("Write to items by key=%s", entityKey(kind, id))
	return nil
}

// Len is the number of stored entities of every kind
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Health(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
