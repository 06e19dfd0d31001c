package insight

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/llm"
	"github.com/Relayline/pulse/internal/vecstore"
)

const testTenant = "t1"

type serviceFixture struct {
	crmStore  *crm.MemoryStore
	vectors   *vecstore.MemoryStore
	histStore *history.MemoryStore
	provider  *llm.MockLLM
	service   *Service
}

// newServiceFixture wires a service over in-memory stores with enough
// seeded signal that the default cold-start thresholds pass for deal d1
// and contact c1.
func newServiceFixture(t *testing.T, provider *llm.MockLLM) *serviceFixture {
	t.Helper()

	crmStore := crm.NewMemoryStore()
	vectors := vecstore.NewMemoryStore()
	histStore := history.NewMemoryStore()

	stageEntered := time.Now().Add(-45 * 24 * time.Hour)
	for i := 1; i <= 3; i++ {
		status := crm.DealOpen
		if i == 2 {
			status = crm.DealWon
		}
		crmStore.AddDeal(crm.Deal{
			TenantID:       testTenant,
			ID:             fmt.Sprintf("d%d", i),
			Title:          fmt.Sprintf("Deal %d", i),
			Stage:          "negotiation",
			Status:         status,
			Value:          float64(i) * 1000,
			StageEnteredAt: stageEntered,
			CreatedAt:      stageEntered,
		})
		crmStore.AddContact(crm.Contact{
			TenantID: testTenant,
			ID:       fmt.Sprintf("c%d", i),
			Name:     fmt.Sprintf("Contact %d", i),
			Company:  "Acme",
		})
	}
	for i, a := range []crm.Activity{
		{DealID: "d1", ContactID: "c1", Kind: "call", Subject: "Kickoff"},
		{DealID: "d1", ContactID: "c1", Kind: "email", Subject: "Pricing follow-up"},
		{DealID: "d2", ContactID: "c2", Kind: "meeting", Subject: "Contract review"},
	} {
		a.TenantID = testTenant
		a.ID = fmt.Sprintf("a%d", i+1)
		a.OccurredAt = time.Now().Add(-time.Duration(i) * time.Hour)
		crmStore.AddActivity(a)
	}

	vec := func(i int) []float32 {
		v := make([]float32, 8)
		v[i%8] = 1
		return v
	}
	records := []vecstore.Record{
		{TenantID: testTenant, EntityType: crm.EntityDeal, EntityID: "d1", Vector: vec(0), SourceHash: "h1", Text: "deal one history"},
		{TenantID: testTenant, EntityType: crm.EntityDeal, EntityID: "d2", Vector: vec(1), SourceHash: "h2", Text: "deal two history"},
		{TenantID: testTenant, EntityType: crm.EntityContact, EntityID: "c1", Vector: vec(2), SourceHash: "h3", Text: "contact one history"},
	}
	if err := vectors.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	detector, err := coldstart.NewDetector(crmStore, vectors, coldstart.DefaultThresholds())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	asm, err := assembler.New(crmStore, vectors, &embed.MockEmbedder{}, histStore, assembler.DefaultConfig())
	if err != nil {
		t.Fatalf("assembler.New failed: %v", err)
	}
	service, err := NewService(crmStore, detector, asm, provider, histStore, DefaultConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	return &serviceFixture{
		crmStore:  crmStore,
		vectors:   vectors,
		histStore: histStore,
		provider:  provider,
		service:   service,
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestNewService(t *testing.T) {
	f := newServiceFixture(t, llm.NewMockLLM("{}"))

	t.Run("Nil provider rejected", func(t *testing.T) {
		detector, _ := coldstart.NewDetector(f.crmStore, f.vectors, coldstart.DefaultThresholds())
		asm, _ := assembler.New(f.crmStore, f.vectors, &embed.MockEmbedder{}, nil, assembler.DefaultConfig())
		if _, err := NewService(f.crmStore, detector, asm, nil, nil, Config{}); err == nil {
			t.Error("Expected error for nil provider")
		}
	})

	t.Run("Nil history store allowed", func(t *testing.T) {
		detector, _ := coldstart.NewDetector(f.crmStore, f.vectors, coldstart.DefaultThresholds())
		asm, _ := assembler.New(f.crmStore, f.vectors, &embed.MockEmbedder{}, nil, assembler.DefaultConfig())
		if _, err := NewService(f.crmStore, detector, asm, llm.NewMockLLM("{}"), nil, Config{}); err != nil {
			t.Errorf("Expected nil history store to be accepted: %v", err)
		}
	})
}
