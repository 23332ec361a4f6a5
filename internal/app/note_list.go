package app

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
)

// SortOrder selects how a listing is ordered.
type SortOrder string

const (
	SortByDate      SortOrder = "date"
	SortByTitle     SortOrder = "title"
	SortByMissCount SortOrder = "missCount"
)

// Listing is the result of a refresh. Stale is set when the remote fetch
// failed and Notes came from the local cache; Cause then holds the failure.
type Listing struct {
	Notes []domain.Note `json:"notes"`
	Stale bool          `json:"stale"`
	Cause error         `json:"-"`
}

// NoteList orchestrates the create, edit and delete flows of the note list.
type NoteList struct {
	notes  *RemoteNotes
	cache  *cache.Cache
	now    func() time.Time
	logger *slog.Logger
}

func NewNoteList(notes *RemoteNotes, c *cache.Cache, logger *slog.Logger) *NoteList {
	return NewNoteListWithClock(notes, c, logger, time.Now)
}

// NewNoteListWithClock allows deterministic creation timestamps in tests.
func NewNoteListWithClock(notes *RemoteNotes, c *cache.Cache, logger *slog.Logger, now func() time.Time) *NoteList {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteList{notes: notes, cache: c, now: now, logger: logger}
}

// Refresh fetches the owner's notes. When the remote fails, the cached notes
// are returned instead with Stale set; only a failing cache read is an error.
func (l *NoteList) Refresh(ctx context.Context, ownerID string, order SortOrder) (Listing, error) {
	notes, err := l.notes.FetchAll(ctx, ownerID)
	if err == nil {
		return Listing{Notes: SortNotes(notes, order)}, nil
	}
	if ownerID == "" {
		return Listing{}, err
	}

	cause := domain.Fail(domain.CodeFetch, "fetch", err)
	l.logger.Warn("falling back to cached notes", "owner", ownerID, "error", err)
	cached, cerr := l.cache.Load(ctx)
	if cerr != nil {
		return Listing{}, cause
	}
	return Listing{Notes: SortNotes(cached, order), Stale: true, Cause: cause}, nil
}

// Create validates draft and stores it as a new note with a zero miss count.
func (l *NoteList) Create(ctx context.Context, ownerID string, draft domain.NoteDraft) (domain.Note, error) {
	if ownerID == "" {
		return domain.Note{}, domain.ErrNotSignedIn
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return domain.Note{}, domain.Fail(domain.CodeValidation, "create", err)
	}

	note := domain.Note{
		OwnerID:     ownerID,
		Title:       draft.Title,
		Question:    draft.Question,
		Answer:      draft.Answer,
		Explanation: draft.Explanation,
		CreatedAt:   l.now().UTC(),
	}
	id, err := l.notes.Create(ctx, note)
	if err != nil {
		return domain.Note{}, domain.Fail(domain.CodeSave, "create", err)
	}
	note.ID = id
	l.resync(ctx, ownerID)
	return note, nil
}

// Edit overwrites the editable fields of note id with draft.
func (l *NoteList) Edit(ctx context.Context, ownerID, id string, draft domain.NoteDraft) error {
	if ownerID == "" {
		return domain.ErrNotSignedIn
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return domain.Fail(domain.CodeValidation, "edit", err)
	}
	if err := l.notes.Update(ctx, ownerID, id, draft.Patch()); err != nil {
		return domain.Fail(domain.CodeUpdate, "edit", err)
	}
	l.resync(ctx, ownerID)
	return nil
}

// Delete removes note id once confirmation equals its current title exactly.
// The title is re-read from the remote store, so a rename made elsewhere is
// what has to be confirmed.
func (l *NoteList) Delete(ctx context.Context, ownerID, id, confirmation string) error {
	if ownerID == "" {
		return domain.ErrNotSignedIn
	}
	notes, err := l.notes.FetchAll(ctx, ownerID)
	if err != nil {
		return domain.Fail(domain.CodeDelete, "delete", err)
	}
	note, ok := findNote(notes, id)
	if !ok || note.OwnerID != ownerID {
		return domain.Fail(domain.CodeDelete, "delete", domain.ErrNoteNotFound)
	}
	if confirmation != note.Title {
		return domain.Fail(domain.CodeConfirmation, "delete", domain.ErrConfirmationMismatch)
	}
	if err := l.notes.Delete(ctx, ownerID, id); err != nil {
		return domain.Fail(domain.CodeDelete, "delete", err)
	}
	l.resync(ctx, ownerID)
	return nil
}

// Lookup returns the cached note with id.
func (l *NoteList) Lookup(ctx context.Context, id string) (domain.Note, error) {
	notes, err := l.cache.Load(ctx)
	if err != nil {
		return domain.Note{}, err
	}
	if n, ok := findNote(notes, id); ok {
		return n, nil
	}
	return domain.Note{}, domain.ErrNoteNotFound
}

func findNote(notes []domain.Note, id string) (domain.Note, bool) {
	for _, n := range notes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Note{}, false
}

// resync re-fetches after a successful mutation so the cache and any open
// view catch up. The mutation already succeeded, so a failure is only logged.
func (l *NoteList) resync(ctx context.Context, ownerID string) {
	if _, err := l.notes.FetchAll(ctx, ownerID); err != nil {
		l.logger.Warn("resync after mutation failed", "owner", ownerID, "error", err)
	}
}

// SortNotes returns a sorted copy of notes. Unknown orders keep store order.
func SortNotes(notes []domain.Note, order SortOrder) []domain.Note {
	out := make([]domain.Note, len(notes))
	copy(out, notes)
	switch order {
	case SortByDate:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortByTitle:
		sort.SliceStable(out, func(i, j int) bool { return strings.Compare(out[i].Title, out[j].Title) < 0 })
	case SortByMissCount:
		sort.SliceStable(out, func(i, j int) bool { return out[i].MissCount > out[j].MissCount })
	}
	return out
}
