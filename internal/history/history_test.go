package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryStoreAppendRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("Turns come back oldest to newest", func(t *testing.T) {
		store := NewMemoryStore()
		for i := 0; i < 3; i++ {
			err := store.Append(ctx, Turn{
				ID:          fmt.Sprintf("turn-%d", i),
				TenantID:    "t1",
				ContactID:   "c1",
				UserMessage: fmt.Sprintf("message %d", i),
			})
			if err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		turns, err := store.Recent(ctx, "t1", "c1", "", 10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(turns) != 3 {
			t.Fatalf("Expected 3 turns, got %d", len(turns))
		}
		if turns[0].ID != "turn-0" || turns[2].ID != "turn-2" {
			t.Errorf("Expected oldest-to-newest order, got %+v", turns)
		}
	})

	t.Run("Limit keeps the newest turns", func(t *testing.T) {
		store := NewMemoryStore()
		for i := 0; i < 5; i++ {
			store.Append(ctx, Turn{ID: fmt.Sprintf("turn-%d", i), TenantID: "t1", DealID: "d1"})
		}
		turns, err := store.Recent(ctx, "t1", "", "d1", 2)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(turns) != 2 || turns[0].ID != "turn-3" || turns[1].ID != "turn-4" {
			t.Errorf("Expected the 2 newest turns, got %+v", turns)
		}
	})

	t.Run("Logs are keyed by tenant, contact and deal", func(t *testing.T) {
		store := NewMemoryStore()
		store.Append(ctx, Turn{ID: "a", TenantID: "t1", ContactID: "c1"})
		store.Append(ctx, Turn{ID: "b", TenantID: "t1", ContactID: "c2"})
		store.Append(ctx, Turn{ID: "c", TenantID: "t2", ContactID: "c1"})

		turns, err := store.Recent(ctx, "t1", "c1", "", 10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(turns) != 1 || turns[0].ID != "a" {
			t.Errorf("Expected only t1/c1's turn, got %+v", turns)
		}
	})

	t.Run("Missing tenant rejected", func(t *testing.T) {
		store := NewMemoryStore()
		if err := store.Append(ctx, Turn{ID: "a"}); !errors.Is(err, ErrMissingTenant) {
			t.Fatalf("Expected ErrMissingTenant, got: %v", err)
		}
		if _, err := store.Recent(ctx, "", "c1", "", 10); !errors.Is(err, ErrMissingTenant) {
			t.Fatalf("Expected ErrMissingTenant, got: %v", err)
		}
	})

	t.Run("Non-positive limit is empty", func(t *testing.T) {
		store := NewMemoryStore()
		store.Append(ctx, Turn{ID: "a", TenantID: "t1"})
		turns, err := store.Recent(ctx, "t1", "", "", 0)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("Expected no turns for limit 0, got %+v", turns)
		}
	})
}

func TestLogKey(t *testing.T) {
	if got, want := logKey("t1", "c1", "d1"), "chat:t1:c1:d1"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	// Absent scoping fields keep their slot so keys never collide.
	if got, want := logKey("t1", "", "d1"), "chat:t1::d1"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
