package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"flashnotes/internal/domain"
)

// NoteStore is an in-memory document store (useful for tests/demos). Title
// uniqueness per owner is enforced on every write, like a unique index.
type NoteStore struct {
	mu    sync.RWMutex
	notes map[string]domain.Note
}

// NewNoteStore seeds the store with notes; notes without an id get one.
func NewNoteStore(seed ...domain.Note) *NoteStore {
	s := &NoteStore{notes: make(map[string]domain.Note, len(seed))}
	for _, n := range seed {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		s.notes[n.ID] = n
	}
	return s
}

func (s *NoteStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Note, 0)
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *NoteStore) FindByTitle(_ context.Context, ownerID, title string) (domain.Note, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.findLocked(ownerID, title)
	return n, ok, nil
}

func (s *NoteStore) Insert(_ context.Context, note domain.Note) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.findLocked(note.OwnerID, note.Title); taken {
		return "", domain.ErrDuplicateTitle
	}
	note.ID = uuid.NewString()
	s.notes[note.ID] = note
	return note.ID, nil
}

func (s *NoteStore) Update(_ context.Context, ownerID, id string, patch domain.NotePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNoteNotFound
	}
	if patch.Title != nil && *patch.Title != n.Title {
		if _, taken := s.findLocked(ownerID, *patch.Title); taken {
			return domain.ErrDuplicateTitle
		}
	}
	s.notes[id] = patch.Apply(n)
	return nil
}

func (s *NoteStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNoteNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *NoteStore) IncrementMissCount(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNoteNotFound
	}
	n.MissCount++
	s.notes[id] = n
	return nil
}

// Get returns a note regardless of owner. Intended for assertions in tests.
func (s *NoteStore) Get(id string) (domain.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	return n, ok
}

// Len returns the number of stored notes across all owners.
func (s *NoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func (s *NoteStore) findLocked(ownerID, title string) (domain.Note, bool) {
	for _, n := range s.notes {
		if n.OwnerID == ownerID && n.Title == title {
			return n, true
		}
	}
	return domain.Note{}, false
}
