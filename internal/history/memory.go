package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Turn
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Turn)}
}

func (m *MemoryStore) Append(ctx context.Context, turn Turn) error {
	if turn.TenantID == "" {
		return ErrMissingTenant
	}
	key := logKey(turn.TenantID, turn.ContactID, turn.DealID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[key] = append(m.logs[key], turn)
	return nil
}

func (m *MemoryStore) Recent(ctx context.Context, tenantID, contactID, dealID string, limit int) ([]Turn, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if limit <= 0 {
		return []Turn{}, nil
	}

	key := logKey(tenantID, contactID, dealID)
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.logs[key]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}
