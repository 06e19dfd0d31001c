package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/vecstore"
)

// queryEmbedder maps every text to the same query vector so neighbor
// scores are controlled entirely by the seeded record vectors.
func queryEmbedder() *embed.MockEmbedder {
	return &embed.MockEmbedder{
		Func: func(ctx context.Context, texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i := range texts {
				vectors[i] = []float32{1, 0, 0}
			}
			return vectors, nil
		},
	}
}

func seedAssembler(t *testing.T, config Config) (*Assembler, *crm.MemoryStore, *vecstore.MemoryStore, *history.MemoryStore) {
	t.Helper()
	crmStore := crm.NewMemoryStore()
	vectors := vecstore.NewMemoryStore()
	histStore := history.NewMemoryStore()

	crmStore.AddDeal(crm.Deal{
		TenantID:  "t1",
		ID:        "d1",
		Title:     "Acme renewal",
		Stage:     "negotiation",
		Status:    crm.DealOpen,
		Value:     12000,
		CreatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})

	records := []vecstore.Record{
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d1", Vector: []float32{1, 0, 0}, Text: "target itself"},
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d2", Vector: []float32{0.95, 0.05, 0}, Text: "closest neighbor"},
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d3", Vector: []float32{0.5, 0.5, 0}, Text: "middle neighbor"},
		{TenantID: "t1", EntityType: crm.EntityDeal, EntityID: "d4", Vector: []float32{0, 1, 0}, Text: "distant neighbor"},
		{TenantID: "t2", EntityType: crm.EntityDeal, EntityID: "x1", Vector: []float32{1, 0, 0}, Text: "foreign tenant"},
	}
	if err := vectors.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	asm, err := New(crmStore, vectors, queryEmbedder(), histStore, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return asm, crmStore, vectors, histStore
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	t.Run("Target fields plus ranked neighbors", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())

		out, err := asm.Assemble(ctx, Request{
			TenantID:     "t1",
			TargetType:   crm.EntityDeal,
			TargetID:     "d1",
			NeighborType: crm.EntityDeal,
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if out.Target == nil || out.Target.ID != "d1" {
			t.Fatalf("Expected target snapshot for d1, got %+v", out.Target)
		}
		if len(out.Neighbors) != 3 {
			t.Fatalf("Expected 3 neighbors, got %d", len(out.Neighbors))
		}
		if out.Neighbors[0].EntityID != "d2" {
			t.Errorf("Expected closest neighbor first, got %q", out.Neighbors[0].EntityID)
		}
		for _, n := range out.Neighbors {
			if n.EntityID == "d1" {
				t.Error("Expected the target to be excluded from its own neighbors")
			}
			if n.EntityID == "x1" {
				t.Error("Found another tenant's record in the neighbors")
			}
		}
		if !strings.Contains(out.Prompt, "# Target deal d1") {
			t.Errorf("Expected target section in prompt, got:\n%s", out.Prompt)
		}
		if !strings.Contains(out.Prompt, "closest neighbor") {
			t.Errorf("Expected neighbor text in prompt, got:\n%s", out.Prompt)
		}
	})

	t.Run("Free-text query without target", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())

		out, err := asm.Assemble(ctx, Request{
			TenantID:  "t1",
			QueryText: "the price is too high",
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if out.Target != nil {
			t.Error("Expected no target snapshot for a free-text query")
		}
		if len(out.Neighbors) == 0 {
			t.Error("Expected neighbors for a free-text query")
		}
	})

	t.Run("No target and no query text", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())
		if _, err := asm.Assemble(ctx, Request{TenantID: "t1"}); !errors.Is(err, ErrMissingQuery) {
			t.Fatalf("Expected ErrMissingQuery, got: %v", err)
		}
	})

	t.Run("Missing target entity", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())
		_, err := asm.Assemble(ctx, Request{TenantID: "t1", TargetType: crm.EntityDeal, TargetID: "ghost"})
		if !errors.Is(err, crm.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("Missing tenant", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())
		if _, err := asm.Assemble(ctx, Request{QueryText: "hello"}); !errors.Is(err, vecstore.ErrMissingTenant) {
			t.Fatalf("Expected ErrMissingTenant, got: %v", err)
		}
	})

	t.Run("History appended when requested", func(t *testing.T) {
		asm, _, _, histStore := seedAssembler(t, DefaultConfig())
		for i := 0; i < 3; i++ {
			histStore.Append(ctx, history.Turn{
				ID:               fmt.Sprintf("turn-%d", i),
				TenantID:         "t1",
				ContactID:        "c1",
				UserMessage:      fmt.Sprintf("question %d", i),
				AssistantMessage: fmt.Sprintf("answer %d", i),
			})
		}

		out, err := asm.Assemble(ctx, Request{
			TenantID:       "t1",
			QueryText:      "the price is too high",
			IncludeHistory: true,
			ContactID:      "c1",
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if len(out.History) != 3 {
			t.Fatalf("Expected 3 history turns, got %d", len(out.History))
		}
		if out.History[0].ID != "turn-0" {
			t.Errorf("Expected oldest turn first, got %q", out.History[0].ID)
		}
		if !strings.Contains(out.Prompt, "# Prior Conversation") {
			t.Errorf("Expected conversation section in prompt, got:\n%s", out.Prompt)
		}
		// Neighbors render before history.
		if strings.Index(out.Prompt, "# Related History") > strings.Index(out.Prompt, "# Prior Conversation") {
			t.Error("Expected neighbors to render before conversation history")
		}
	})

	t.Run("History omitted when not requested", func(t *testing.T) {
		asm, _, _, histStore := seedAssembler(t, DefaultConfig())
		histStore.Append(ctx, history.Turn{ID: "turn-0", TenantID: "t1", ContactID: "c1", UserMessage: "hi"})

		out, err := asm.Assemble(ctx, Request{TenantID: "t1", QueryText: "hello", ContactID: "c1"})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if len(out.History) != 0 {
			t.Errorf("Expected no history, got %+v", out.History)
		}
	})
}

func TestAssembleBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("Drops lowest-similarity neighbors first", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxContextChars = 300
		asm, _, _, _ := seedAssembler(t, cfg)

		out, err := asm.Assemble(ctx, Request{
			TenantID:     "t1",
			TargetType:   crm.EntityDeal,
			TargetID:     "d1",
			NeighborType: crm.EntityDeal,
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if len(out.Prompt) > cfg.MaxContextChars {
			t.Errorf("Prompt exceeds budget: %d > %d", len(out.Prompt), cfg.MaxContextChars)
		}
		if out.Dropped == 0 {
			t.Fatal("Expected at least one neighbor to be dropped")
		}
		// Survivors must be the highest-scoring prefix.
		if len(out.Neighbors) > 0 && out.Neighbors[0].EntityID != "d2" {
			t.Errorf("Expected the closest neighbor to survive truncation, got %q", out.Neighbors[0].EntityID)
		}
		if strings.Contains(out.Prompt, "distant neighbor") && out.Dropped > 0 {
			t.Error("Expected the most distant neighbor to be dropped first")
		}
	})

	t.Run("Target fields survive even a tiny budget", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxContextChars = 40
		asm, _, _, _ := seedAssembler(t, cfg)

		out, err := asm.Assemble(ctx, Request{
			TenantID:   "t1",
			TargetType: crm.EntityDeal,
			TargetID:   "d1",
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if len(out.Prompt) > cfg.MaxContextChars {
			t.Errorf("Prompt exceeds budget: %d > %d", len(out.Prompt), cfg.MaxContextChars)
		}
		if !strings.HasPrefix(out.Prompt, "# Target deal d1") {
			t.Errorf("Expected prompt to start with the target section, got:\n%s", out.Prompt)
		}
	})

	t.Run("History turns drop oldest first after neighbors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxContextChars = 100
		asm, _, _, _ := seedAssembler(t, cfg)

		c := &Context{
			Neighbors: []Snippet{
				{EntityType: crm.EntityDeal, EntityID: "d2", Score: 0.9, Text: "closest neighbor"},
			},
			History: []history.Turn{
				{UserMessage: "first question", AssistantMessage: "first answer"},
				{UserMessage: "second question", AssistantMessage: "second answer"},
			},
		}
		asm.bound(c)

		if len(c.Prompt) > cfg.MaxContextChars {
			t.Errorf("Prompt exceeds budget: %d > %d", len(c.Prompt), cfg.MaxContextChars)
		}
		if len(c.Neighbors) != 0 {
			t.Errorf("Expected neighbors to be dropped before history, got %+v", c.Neighbors)
		}
		if len(c.History) != 1 || c.History[0].UserMessage != "second question" {
			t.Errorf("Expected only the newest turn to survive, got %+v", c.History)
		}
		if !strings.Contains(c.Prompt, "second question") || strings.Contains(c.Prompt, "first question") {
			t.Errorf("Expected the oldest turn gone from the prompt, got:\n%s", c.Prompt)
		}
	})

	t.Run("Hard cut never splits a rune", func(t *testing.T) {
		cfg := DefaultConfig()
		// Lands one byte into the "é" of the stage field.
		cfg.MaxContextChars = 29
		asm, crmStore, _, _ := seedAssembler(t, cfg)
		crmStore.AddDeal(crm.Deal{
			TenantID: "t1",
			ID:       "d9",
			Title:    "日本語のタイトルがとても長い案件",
			Stage:    "négociation",
			Status:   crm.DealOpen,
		})

		out, err := asm.Assemble(ctx, Request{
			TenantID:   "t1",
			TargetType: crm.EntityDeal,
			TargetID:   "d9",
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if len(out.Prompt) > cfg.MaxContextChars {
			t.Errorf("Prompt exceeds budget: %d > %d", len(out.Prompt), cfg.MaxContextChars)
		}
		if !utf8.ValidString(out.Prompt) {
			t.Errorf("Expected a rune-safe cut, got invalid UTF-8: %q", out.Prompt)
		}
	})

	t.Run("Large budget drops nothing", func(t *testing.T) {
		asm, _, _, _ := seedAssembler(t, DefaultConfig())
		out, err := asm.Assemble(ctx, Request{
			TenantID:   "t1",
			TargetType: crm.EntityDeal,
			TargetID:   "d1",
		})
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if out.Dropped != 0 {
			t.Errorf("Expected no drops under the default budget, got %d", out.Dropped)
		}
	})
}

func TestAssembleEmbedTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedTimeout = 50 * time.Millisecond

	stalled := &embed.MockEmbedder{
		Func: func(ctx context.Context, texts []string) ([][]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	asm, err := New(crm.NewMemoryStore(), vecstore.NewMemoryStore(), stalled, nil, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	_, err = asm.Assemble(context.Background(), Request{TenantID: "t1", QueryText: "hello"})
	if err == nil {
		t.Fatal("Expected a stalled embedder to fail the request")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected the timeout to fire promptly, took %v", elapsed)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Run("Cuts on a rune boundary", func(t *testing.T) {
		got := truncateRunes("abc日本語", 5)
		if got != "abc" {
			t.Errorf("Expected cut before the split rune, got %q", got)
		}
	})

	t.Run("Short strings untouched", func(t *testing.T) {
		if got := truncateRunes("abc", 5); got != "abc" {
			t.Errorf("Expected string unchanged, got %q", got)
		}
	})

	t.Run("Exact boundary kept", func(t *testing.T) {
		if got := truncateRunes("ab日", 5); got != "ab日" {
			t.Errorf("Expected full string at exact length, got %q", got)
		}
	})
}

func TestNew(t *testing.T) {
	crmStore := crm.NewMemoryStore()
	vectors := vecstore.NewMemoryStore()

	t.Run("Nil history store allowed", func(t *testing.T) {
		if _, err := New(crmStore, vectors, queryEmbedder(), nil, Config{}); err != nil {
			t.Fatalf("Expected nil history store to be accepted: %v", err)
		}
	})

	t.Run("Nil core dependencies rejected", func(t *testing.T) {
		if _, err := New(nil, vectors, queryEmbedder(), nil, Config{}); err == nil {
			t.Error("Expected error for nil crm store")
		}
		if _, err := New(crmStore, nil, queryEmbedder(), nil, Config{}); err == nil {
			t.Error("Expected error for nil vector store")
		}
		if _, err := New(crmStore, vectors, nil, nil, Config{}); err == nil {
			t.Error("Expected error for nil embedder")
		}
	})

	t.Run("Zero config gets defaults", func(t *testing.T) {
		asm, err := New(crmStore, vectors, queryEmbedder(), nil, Config{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if asm.config.TopK != DefaultConfig().TopK {
			t.Errorf("Expected default TopK, got %d", asm.config.TopK)
		}
		if asm.config.EmbedTimeout != DefaultConfig().EmbedTimeout {
			t.Errorf("Expected default embed timeout, got %v", asm.config.EmbedTimeout)
		}
	})
}
