package vecstore

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Relayline/pulse/internal/crm"
)

func seedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	records := []Record{
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d1", Vector: []float32{1, 0, 0}, SourceHash: "h1", Text: "deal one"},
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d2", Vector: []float32{0.9, 0.1, 0}, SourceHash: "h2", Text: "deal two"},
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d3", Vector: []float32{0, 1, 0}, SourceHash: "h3", Text: "deal three"},
		{TenantID: "t1", EntityType: crm.EntityContact, EntityID: "c1", Vector: []float32{1, 0, 0}, SourceHash: "h4", Text: "contact one"},
		{TenantID: "t2", EntityType: crm.EntityDeal, EntityID: "x1", Vector: []float32{1, 0, 0}, SourceHash: "h5", Text: "other tenant"},
	}
	if err := store.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return store
}

func TestMemoryStoreUpsert(t *testing.T) {
	t.Run("Empty records rejected", func(t *testing.T) {
		store := NewMemoryStore()
		if err := store.Upsert(context.Background(), nil); !errors.Is(err, ErrEmptyRecords) {
			t.Fatalf("Expected ErrEmptyRecords, got: %v", err)
		}
	})

	t.Run("Missing tenant rejected", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.Upsert(context.Background(), []Record{{EntityType: crm.EntityDeal, EntityID: "d1"}})
		if !errors.Is(err, ErrMissingTenant) {
			t.Fatalf("Expected ErrMissingTenant, got: %v", err)
		}
	})

	t.Run("Same identity overwrites", func(t *testing.T) {
		store := seedMemoryStore(t)
		ctx := context.Background()
		err := store.Upsert(ctx, []Record{
			{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d1", Vector: []float32{0, 0, 1}, SourceHash: "h1b"},
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		n, err := store.Count(ctx, "t1", crm.EntityDeal)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected count to stay at 3 after overwrite, got %d", n)
		}
		hashes, err := store.SourceHashes(ctx, "t1", crm.EntityDeal, []string{"d1"})
		if err != nil {
			t.Fatalf("SourceHashes failed: %v", err)
		}
		if hashes["d1"] != "h1b" {
			t.Errorf("Expected overwritten hash h1b, got %q", hashes["d1"])
		}
	})
}

func TestMemoryStoreSearch(t *testing.T) {
	store := seedMemoryStore(t)
	ctx := context.Background()

	t.Run("Ranks by cosine score", func(t *testing.T) {
		hits, err := store.Search(ctx, "t1", SearchQuery{
			Vector:     []float32{1, 0, 0},
			TopK:       3,
			EntityType: crm.EntityDeal,
		})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 3 {
			t.Fatalf("Expected 3 hits, got %d", len(hits))
		}
		if hits[0].EntityID != "d1" || hits[1].EntityID != "d2" || hits[2].EntityID != "d3" {
			t.Errorf("Unexpected ranking: %+v", hits)
		}
		if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
			t.Error("Expected scores in descending order")
		}
	})

	t.Run("Tenant isolation", func(t *testing.T) {
		hits, err := store.Search(ctx, "t2", SearchQuery{Vector: []float32{1, 0, 0}, TopK: 10})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		for _, h := range hits {
			if h.EntityID != "x1" {
				t.Errorf("Found foreign record %q in tenant t2 results", h.EntityID)
			}
		}
		if len(hits) != 1 {
			t.Errorf("Expected exactly t2's single record, got %d hits", len(hits))
		}
	})

	t.Run("Excludes target", func(t *testing.T) {
		hits, err := store.Search(ctx, "t1", SearchQuery{
			Vector:     []float32{1, 0, 0},
			TopK:       10,
			EntityType: crm.EntityDeal,
			ExcludeID:  "d1",
		})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		for _, h := range hits {
			if h.EntityID == "d1" {
				t.Error("Expected d1 to be excluded from its own neighbor search")
			}
		}
	})

	t.Run("Type filter", func(t *testing.T) {
		hits, err := store.Search(ctx, "t1", SearchQuery{
			Vector:     []float32{1, 0, 0},
			TopK:       10,
			EntityType: crm.EntityContact,
		})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 1 || hits[0].EntityID != "c1" {
			t.Errorf("Expected only contact c1, got %+v", hits)
		}
	})

	t.Run("TopK truncates", func(t *testing.T) {
		hits, err := store.Search(ctx, "t1", SearchQuery{Vector: []float32{1, 0, 0}, TopK: 2})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(hits) != 2 {
			t.Errorf("Expected 2 hits, got %d", len(hits))
		}
	})

	t.Run("Invalid topK", func(t *testing.T) {
		if _, err := store.Search(ctx, "t1", SearchQuery{Vector: []float32{1, 0, 0}}); !errors.Is(err, ErrSearchFailed) {
			t.Fatalf("Expected ErrSearchFailed, got: %v", err)
		}
	})

	t.Run("Missing tenant", func(t *testing.T) {
		if _, err := store.Search(ctx, "", SearchQuery{Vector: []float32{1}, TopK: 1}); !errors.Is(err, ErrMissingTenant) {
			t.Fatalf("Expected ErrMissingTenant, got: %v", err)
		}
	})
}

func TestMemoryStoreDelete(t *testing.T) {
	store := seedMemoryStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, "t1", crm.EntityDeal, []string{"d1", "d2"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	n, err := store.Count(ctx, "t1", crm.EntityDeal)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 remaining deal embedding, got %d", n)
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical vectors", func(t *testing.T) {
		s, err := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		if err != nil {
			t.Fatalf("cosineSimilarity failed: %v", err)
		}
		if math.Abs(float64(s)-1) > 1e-6 {
			t.Errorf("Expected similarity 1, got %f", s)
		}
	})

	t.Run("Orthogonal vectors", func(t *testing.T) {
		s, err := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
		if err != nil {
			t.Fatalf("cosineSimilarity failed: %v", err)
		}
		if math.Abs(float64(s)) > 1e-6 {
			t.Errorf("Expected similarity 0, got %f", s)
		}
	})

	t.Run("Dimension mismatch", func(t *testing.T) {
		if _, err := cosineSimilarity([]float32{1, 0}, []float32{1}); !errors.Is(err, ErrInvalidDimension) {
			t.Fatalf("Expected ErrInvalidDimension, got: %v", err)
		}
	})

	t.Run("Zero vector", func(t *testing.T) {
		s, err := cosineSimilarity([]float32{0, 0}, []float32{1, 0})
		if err != nil {
			t.Fatalf("cosineSimilarity failed: %v", err)
		}
		if s != 0 {
			t.Errorf("Expected similarity 0 for zero vector, got %f", s)
		}
	})
}
