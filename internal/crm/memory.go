package crm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and provider-free local
// runs. Records are keyed by tenant so lookups are tenant-scoped by
// construction.
type MemoryStore struct {
	mu       sync.RWMutex
	deals    map[string][]*Deal
	contacts map[string][]*Contact
	acts     map[string][]*Activity
}

// NewMemoryStore creates an empty in-memory CRM store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deals:    make(map[string][]*Deal),
		contacts: make(map[string][]*Contact),
		acts:     make(map[string][]*Activity),
	}
}

// AddDeal seeds a deal record.
func (m *MemoryStore) AddDeal(d Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.TenantID] = append(m.deals[d.TenantID], &d)
}

// AddContact seeds a contact record.
func (m *MemoryStore) AddContact(c Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.TenantID] = append(m.contacts[c.TenantID], &c)
}

// AddActivity seeds an activity record.
func (m *MemoryStore) AddActivity(a Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acts[a.TenantID] = append(m.acts[a.TenantID], &a)
}

func (m *MemoryStore) Snapshot(ctx context.Context, tenantID string, entityType EntityType, id string) (*Snapshot, error) {
	switch entityType {
	case EntityDeal:
		d, err := m.Deal(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return SnapshotFromDeal(d), nil
	case EntityContact:
		c, err := m.Contact(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return SnapshotFromContact(c), nil
	case EntityActivity:
		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, a := range m.acts[tenantID] {
			if a.ID == id {
				return SnapshotFromActivity(a), nil
			}
		}
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, id)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
}

func (m *MemoryStore) ListIDs(ctx context.Context, tenantID string, entityType EntityType, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	switch entityType {
	case EntityDeal:
		for _, d := range m.deals[tenantID] {
			ids = append(ids, d.ID)
		}
	case EntityContact:
		for _, c := range m.contacts[tenantID] {
			ids = append(ids, c.ID)
		}
	case EntityActivity:
		for _, a := range m.acts[tenantID] {
			ids = append(ids, a.ID)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *MemoryStore) Deal(ctx context.Context, tenantID, id string) (*Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.deals[tenantID] {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: deal %s", ErrNotFound, id)
}

func (m *MemoryStore) Contact(ctx context.Context, tenantID, id string) (*Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contacts[tenantID] {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: contact %s", ErrNotFound, id)
}

func (m *MemoryStore) Activities(ctx context.Context, tenantID string, entityType EntityType, entityID string, limit int) ([]Activity, error) {
	matched, err := m.matchActivities(tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryStore) CountActivities(ctx context.Context, tenantID string, entityType EntityType, entityID string) (int, error) {
	matched, err := m.matchActivities(tenantID, entityType, entityID)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (m *MemoryStore) CountEntities(ctx context.Context, tenantID string, entityType EntityType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch entityType {
	case EntityDeal:
		return len(m.deals[tenantID]), nil
	case EntityContact:
		return len(m.contacts[tenantID]), nil
	case EntityActivity:
		return len(m.acts[tenantID]), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
}

func (m *MemoryStore) matchActivities(tenantID string, entityType EntityType, entityID string) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Activity
	for _, a := range m.acts[tenantID] {
		switch entityType {
		case EntityDeal:
			if a.DealID == entityID {
				matched = append(matched, *a)
			}
		case EntityContact:
			if a.ContactID == entityID {
				matched = append(matched, *a)
			}
		default:
			return nil, fmt.Errorf("%w: activities are linked to deals or contacts, not %q", ErrUnknownEntityType, entityType)
		}
	}
	return matched, nil
}
