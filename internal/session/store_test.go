package session

import (
	"testing"
	"time"

	"sessionrelay/pkg/types"
)

func TestStore_PutGetIsolation(t *testing.T) {
	store := NewStore()
	record := &types.Session{ID: "A", Status: types.StatusWaiting, Attributes: map[string]any{"k": "v"}}
	store.Put(record)

	// Caller mutations after Put do not reach the store
	record.Attributes["k"] = "mutated"

	got, ok := store.Get("A")
	if !ok {
		t.Fatal("Expected record A")
	}
	if got.Attributes["k"] != "v" {
		t.Errorf("Store shares attributes with caller, got %v", got.Attributes["k"])
	}

	// Mutating a returned copy does not reach the store either
	got.Attributes["k"] = "mutated"
	again, _ := store.Get("A")
	if again.Attributes["k"] != "v" {
		t.Error("Get returned a shared record")
	}
}

func TestStore_SequenceAssignment(t *testing.T) {
	store := NewStore()
	store.Put(&types.Session{ID: "A"})
	store.Put(&types.Session{ID: "B"})

	a, _ := store.Get("A")
	b, _ := store.Get("B")
	if a.Seq == 0 || b.Seq <= a.Seq {
		t.Errorf("Expected increasing sequences, got A=%d B=%d", a.Seq, b.Seq)
	}

	// Re-putting a stored record keeps its sequence
	a.Status = types.StatusCompleted
	store.Put(a)
	kept, _ := store.Get("A")
	if kept.Seq != a.Seq {
		t.Errorf("Expected Seq %d kept, got %d", a.Seq, kept.Seq)
	}

	// A fresh record with the same id is a new creation
	store.Put(&types.Session{ID: "A"})
	fresh, _ := store.Get("A")
	if fresh.Seq <= b.Seq {
		t.Errorf("Expected new sequence after B, got %d", fresh.Seq)
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", store.Len())
	}
}

func TestStore_GetMissingAndNil(t *testing.T) {
	store := NewStore()
	store.Put(nil)

	if _, ok := store.Get("missing"); ok {
		t.Error("Expected missing record")
	}
	if store.Len() != 0 {
		t.Errorf("Put(nil) should be ignored, got %d records", store.Len())
	}
}

func TestWaitingQueue_Order(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore()

	// Same timestamp for B and C; arrival order breaks the tie
	store.Put(&types.Session{ID: "C", Status: types.StatusWaiting, CreatedAt: base.Add(time.Second)})
	store.Put(&types.Session{ID: "D", Status: types.StatusCompleted, CreatedAt: base})
	store.Put(&types.Session{ID: "A", Status: types.StatusWaiting, CreatedAt: base})
	store.Put(&types.Session{ID: "B", Status: types.StatusWaiting, CreatedAt: base.Add(time.Second)})

	waiting := store.Waiting()
	ids := make([]string, len(waiting))
	for i, record := range waiting {
		ids[i] = record.ID
	}

	want := []string{"A", "C", "B"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, ids)
		}
	}
}

func TestWaitingQueue_Empty(t *testing.T) {
	if waiting := NewStore().Waiting(); len(waiting) != 0 {
		t.Errorf("Expected empty queue, got %d", len(waiting))
	}
}
