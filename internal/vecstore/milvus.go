package vecstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Relayline/pulse/internal/crm"
)

// MilvusConfig holds configuration for the Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string // Name of the collection
	Dimension      int    // Vector dimension, fixed by the embedding model
	IndexType      string // Index type (default: "HNSW")
	MetricType     string // Similarity metric (default: "COSINE")

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
}

// DefaultMilvusConfig returns default configuration from environment variables
func DefaultMilvusConfig() MilvusConfig {
	address := os.Getenv("MILVUS_ADDRESS")
	if address == "" {
		address = "localhost:19530"
	}

	collection := os.Getenv("MILVUS_COLLECTION")
	if collection == "" {
		collection = "pulse_embeddings"
	}

	return MilvusConfig{
		Address:        address,
		CollectionName: collection,
		Dimension:      1536, // text-embedding-3-small
		IndexType:      "HNSW",
		MetricType:     "COSINE",
		M:              16,
		EfConstruction: 256,
	}
}

// MilvusStore implements Store using Milvus. The tenant filter is compiled
// into the boolean expression passed to Search, so Milvus evaluates it
// before ranking candidates.
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the collection exists with
// the expected schema.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     "tenant_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "entity_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "entity_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "source_hash",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.config.Dimension),
				},
			},
			{
				Name:     "generated_at",
				DataType: entity.FieldTypeInt64, // Unix timestamp
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}

	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Upsert writes records keyed by natural identity. Milvus has no native
// upsert on auto-ID collections, so the existing identities are deleted
// first and the new rows inserted.
func (m *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	for _, r := range records {
		if r.TenantID == "" {
			return ErrMissingTenant
		}
		if len(r.Vector) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(r.Vector))
		}
	}

	// Delete any records with the same identity before inserting.
	byTenantType := make(map[string][]string)
	for _, r := range records {
		key := r.TenantID + "\x00" + string(r.EntityType)
		byTenantType[key] = append(byTenantType[key], r.EntityID)
	}
	for key, ids := range byTenantType {
		parts := strings.SplitN(key, "\x00", 2)
		expr := identityExpr(parts[0], crm.EntityType(parts[1]), ids)
		if err := m.client.Delete(ctx, m.config.CollectionName, "", expr); err != nil {
			return fmt.Errorf("%w: delete before insert: %v", ErrUpsertFailed, err)
		}
	}

	tenantIDs := make([]string, len(records))
	entityTypes := make([]string, len(records))
	entityIDs := make([]string, len(records))
	hashes := make([]string, len(records))
	texts := make([]string, len(records))
	vectors := make([][]float32, len(records))
	generated := make([]int64, len(records))

	for i, r := range records {
		tenantIDs[i] = r.TenantID
		entityTypes[i] = string(r.EntityType)
		entityIDs[i] = r.EntityID
		hashes[i] = r.SourceHash
		texts[i] = r.Text
		vectors[i] = r.Vector
		generated[i] = r.GeneratedAt.Unix()
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("tenant_id", tenantIDs),
		entity.NewColumnVarChar("entity_type", entityTypes),
		entity.NewColumnVarChar("entity_id", entityIDs),
		entity.NewColumnVarChar("source_hash", hashes),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, vectors),
		entity.NewColumnInt64("generated_at", generated),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
	}

	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// SourceHashes returns stored content hashes for the given entity IDs.
func (m *MilvusStore) SourceHashes(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) (map[string]string, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	expr := identityExpr(tenantID, entityType, ids)
	results, err := m.client.Query(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		expr,
		[]string{"entity_id", "source_hash"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query source hashes: %w", err)
	}

	var entityCol, hashCol *entity.ColumnVarChar
	for _, column := range results {
		switch column.Name() {
		case "entity_id":
			entityCol, _ = column.(*entity.ColumnVarChar)
		case "source_hash":
			hashCol, _ = column.(*entity.ColumnVarChar)
		}
	}

	hashes := make(map[string]string, len(ids))
	if entityCol == nil || hashCol == nil {
		return hashes, nil
	}
	for i, id := range entityCol.Data() {
		hashes[id] = hashCol.Data()[i]
	}
	return hashes, nil
}

// Search performs a tenant-scoped top-K similarity search. The tenant
// filter is part of the search expression, never applied to ranked results.
func (m *MilvusStore) Search(ctx context.Context, tenantID string, query SearchQuery) ([]Neighbor, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if len(query.Vector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(query.Vector))
	}

	expr := fmt.Sprintf(`tenant_id == %q`, tenantID)
	if query.EntityType != "" {
		expr = fmt.Sprintf(`%s and entity_type == %q`, expr, string(query.EntityType))
	}
	if query.ExcludeID != "" {
		expr = fmt.Sprintf(`%s and entity_id != %q`, expr, query.ExcludeID)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64) // ef parameter for search
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	vectors := []entity.Vector{entity.FloatVector(query.Vector)}
	outputFields := []string{"entity_type", "entity_id", "text"}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		expr,
		outputFields,
		vectors,
		"embedding",
		entity.COSINE,
		query.TopK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []Neighbor{}, nil
	}

	neighbors := make([]Neighbor, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		n := Neighbor{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			switch field.Name() {
			case "entity_type":
				n.EntityType = crm.EntityType(field.(*entity.ColumnVarChar).Data()[i])
			case "entity_id":
				n.EntityID = field.(*entity.ColumnVarChar).Data()[i]
			case "text":
				n.Text = field.(*entity.ColumnVarChar).Data()[i]
			}
		}
		neighbors = append(neighbors, n)
	}

	return neighbors, nil
}

// Count returns the tenant's number of stored embeddings of a type.
func (m *MilvusStore) Count(ctx context.Context, tenantID string, entityType crm.EntityType) (int, error) {
	if tenantID == "" {
		return 0, ErrMissingTenant
	}

	expr := fmt.Sprintf(`tenant_id == %q and entity_type == %q`, tenantID, string(entityType))
	results, err := m.client.Query(
		ctx,
		m.config.CollectionName,
		nil,
		expr,
		[]string{"entity_id"},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}

	for _, column := range results {
		if column.Name() == "entity_id" {
			return column.Len(), nil
		}
	}
	return 0, nil
}

// Delete removes records by entity IDs.
func (m *MilvusStore) Delete(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if len(ids) == 0 {
		return nil
	}

	expr := identityExpr(tenantID, entityType, ids)
	if err := m.client.Delete(ctx, m.config.CollectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	return nil
}

// Close releases resources and closes the Milvus connection.
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// identityExpr builds the boolean expression selecting a set of entity IDs
// within one tenant and entity type.
func identityExpr(tenantID string, entityType crm.EntityType, ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf(`tenant_id == %q and entity_type == %q and entity_id in [%s]`,
		tenantID, string(entityType), strings.Join(quoted, ", "))
}
