package cart

import (
	"context"
	"sync"
)

// Persister stores one serialized cart record per session.
// Load returns ErrNoRecord when the session has nothing stored.
type Persister interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, record []byte) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryPersister keeps records in process memory. Used for development and tests.
type MemoryPersister struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: make(map[string][]byte)}
}

func (m *MemoryPersister) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[sessionID]
	if !ok {
		return nil, ErrNoRecord
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryPersister) Save(_ context.Context, sessionID string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[sessionID] = append([]byte(nil), record...)
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, sessionID)
	return nil
}
