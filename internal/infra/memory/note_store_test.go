package memory

import (
	"context"
	"errors"
	"testing"

	"flashnotes/internal/domain"
)

func TestNoteStoreScopesByOwner(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStore()

	id, err := store.Insert(ctx, domain.Note{OwnerID: "alice", Title: "Quiz1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.Insert(ctx, domain.Note{OwnerID: "bob", Title: "Quiz1"}); err != nil {
		t.Fatalf("same title for another owner should be allowed: %v", err)
	}

	notes, _ := store.ListByOwner(ctx, "alice")
	if len(notes) != 1 || notes[0].ID != id {
		t.Fatalf("expected only alice's note, got %+v", notes)
	}
	if err := store.Delete(ctx, "bob", id); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Fatalf("expected not found for foreign delete, got %v", err)
	}
	if err := store.IncrementMissCount(ctx, "bob", id); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Fatalf("expected not found for foreign increment, got %v", err)
	}
}

func TestNoteStoreRejectsDuplicateTitles(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStore(domain.Note{ID: "n1", OwnerID: "alice", Title: "X"}, domain.Note{ID: "n2", OwnerID: "alice", Title: "Y"})

	if _, err := store.Insert(ctx, domain.Note{OwnerID: "alice", Title: "X"}); !errors.Is(err, domain.ErrDuplicateTitle) {
		t.Fatalf("expected duplicate on insert, got %v", err)
	}
	title := "X"
	if err := store.Update(ctx, "alice", "n2", domain.NotePatch{Title: &title}); !errors.Is(err, domain.ErrDuplicateTitle) {
		t.Fatalf("expected duplicate on rename, got %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 notes, got %d", store.Len())
	}
}

func TestNoteStoreIncrementMissCount(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStore(domain.Note{ID: "n1", OwnerID: "alice", Title: "X"})

	for i := 0; i < 3; i++ {
		if err := store.IncrementMissCount(ctx, "alice", "n1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	n, _ := store.Get("n1")
	if n.MissCount != 3 {
		t.Fatalf("expected miss count 3, got %d", n.MissCount)
	}
}
