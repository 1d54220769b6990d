package mpm

import (
	"context"
	"sync"

	"tokenwatch.org/internal/token"
)

// MemoryStore keeps MPM records in process. Used when no durable store is
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) UpsertMPM(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.PolicyID] = r
	return nil
}

func (m *MemoryStore) GetMPM(ctx context.Context, policyID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[policyID]
	if !ok {
		return Record{}, token.ErrNotFound
	}
	return r, nil
}

var _ Store = (*MemoryStore)(nil)
