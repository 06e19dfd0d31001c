package vecstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Relayline/pulse/internal/crm"
)

// MemoryStore is an in-process Store with brute-force cosine search.
// Records live in a per-tenant map, so a search can only ever scan the
// querying tenant's vectors. Used by tests and provider-free local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]Record // tenant -> "type/id" -> record
}

// NewMemoryStore creates an empty in-memory embedding store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]map[string]Record)}
}

func recordKey(entityType crm.EntityType, id string) string {
	return string(entityType) + "/" + id
}

func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.TenantID == "" {
			return ErrMissingTenant
		}
		bucket := s.tenants[r.TenantID]
		if bucket == nil {
			bucket = make(map[string]Record)
			s.tenants[r.TenantID] = bucket
		}
		bucket[recordKey(r.EntityType, r.EntityID)] = r
	}
	return nil
}

func (s *MemoryStore) SourceHashes(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) (map[string]string, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make(map[string]string, len(ids))
	bucket := s.tenants[tenantID]
	for _, id := range ids {
		if r, ok := bucket[recordKey(entityType, id)]; ok {
			hashes[id] = r.SourceHash
		}
	}
	return hashes, nil
}

func (s *MemoryStore) Search(ctx context.Context, tenantID string, query SearchQuery) ([]Neighbor, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if query.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrSearchFailed)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors := make([]Neighbor, 0, query.TopK)
	for _, r := range s.tenants[tenantID] {
		if query.EntityType != "" && r.EntityType != query.EntityType {
			continue
		}
		if query.ExcludeID != "" && r.EntityID == query.ExcludeID {
			continue
		}
		score, err := cosineSimilarity(query.Vector, r.Vector)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, Neighbor{
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Score:      score,
			Text:       r.Text,
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].EntityID < neighbors[j].EntityID
	})
	if len(neighbors) > query.TopK {
		neighbors = neighbors[:query.TopK]
	}
	return neighbors, nil
}

func (s *MemoryStore) Count(ctx context.Context, tenantID string, entityType crm.EntityType) (int, error) {
	if tenantID == "" {
		return 0, ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.tenants[tenantID] {
		if r.EntityType == entityType {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.tenants[tenantID]
	for _, id := range ids {
		delete(bucket, recordKey(entityType, id))
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors of
// equal dimension.
func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrInvalidDimension, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
