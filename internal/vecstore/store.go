// Package vecstore persists entity embeddings and serves tenant-scoped
// nearest-neighbor queries. Every operation takes a tenant ID; the tenant
// filter is applied before ranking, so a neighbor from another tenant can
// never appear in a result set regardless of K or query vector.
package vecstore

import (
	"context"
	"errors"
	"time"

	"github.com/Relayline/pulse/internal/crm"
)

// Common errors for embedding store operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyRecords     = errors.New("no records provided for upsert")
	ErrMissingTenant    = errors.New("tenant id is required")
	ErrConnectionFailed = errors.New("failed to connect to vector store")
	ErrUpsertFailed     = errors.New("failed to upsert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

// Record is one persisted embedding, unique per (tenant, entity type,
// entity id). Upserting an existing identity overwrites it; records are
// never versioned.
type Record struct {
	TenantID    string         `json:"tenant_id"`
	EntityType  crm.EntityType `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Vector      []float32      `json:"vector"`
	SourceHash  string         `json:"source_hash"`
	Text        string         `json:"text"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SearchQuery describes one nearest-neighbor lookup within a tenant.
type SearchQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// TopK is the number of neighbors to return.
	TopK int

	// EntityType, when set, restricts results to one entity type.
	EntityType crm.EntityType

	// ExcludeID drops the target entity itself from the results.
	ExcludeID string
}

// Neighbor is one similarity-search hit, cosine score descending.
type Neighbor struct {
	EntityType crm.EntityType `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Score      float32        `json:"score"`
	Text       string         `json:"text"`
}

// Store is the embedding store contract.
type Store interface {
	// Upsert writes records keyed by (tenant, type, id), replacing any
	// existing record with the same identity.
	Upsert(ctx context.Context, records []Record) error

	// SourceHashes returns the stored content hash for each of the given
	// entity IDs that has an embedding. IDs without a record are absent
	// from the map.
	SourceHashes(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) (map[string]string, error)

	// Search runs a tenant-scoped nearest-neighbor query.
	Search(ctx context.Context, tenantID string, query SearchQuery) ([]Neighbor, error)

	// Count returns the tenant's number of stored embeddings of a type.
	Count(ctx context.Context, tenantID string, entityType crm.EntityType) (int, error)

	// Delete removes records by entity IDs, used when the CRM store
	// reports a cascading entity deletion.
	Delete(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) error

	// Close releases resources and closes connections.
	Close() error
}
