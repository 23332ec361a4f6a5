package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
	"flashnotes/internal/retry"
)

// DocumentStore abstracts the remote note collection (in-memory, Postgres, etc).
// Every method is scoped by owner; a note of another owner behaves as missing.
type DocumentStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Note, error)
	FindByTitle(ctx context.Context, ownerID, title string) (domain.Note, bool, error)
	// Insert stores note and returns the generated id. Stores with a uniqueness
	// constraint report a violation as domain.ErrDuplicateTitle.
	Insert(ctx context.Context, note domain.Note) (string, error)
	Update(ctx context.Context, ownerID, id string, patch domain.NotePatch) error
	Delete(ctx context.Context, ownerID, id string) error
	// IncrementMissCount adds one at the store, not read-modify-write.
	IncrementMissCount(ctx context.Context, ownerID, id string) error
}

// RemoteNotes runs every store operation through the shared retry policy and
// mirrors successful fetches into the local cache.
type RemoteNotes struct {
	store  DocumentStore
	policy *retry.Policy
	cache  *cache.Cache
	logger *slog.Logger
	sf     singleflight.Group
}

func NewRemoteNotes(store DocumentStore, policy *retry.Policy, c *cache.Cache, logger *slog.Logger) *RemoteNotes {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteNotes{store: store, policy: policy, cache: c, logger: logger}
}

// FetchAll returns every note of ownerID in store order and replaces the cache.
// Concurrent fetches for the same owner share one remote call.
func (r *RemoteNotes) FetchAll(ctx context.Context, ownerID string) ([]domain.Note, error) {
	if ownerID == "" {
		return nil, domain.ErrNotSignedIn
	}
	v, err, _ := r.sf.Do(ownerID, func() (interface{}, error) {
		notes, err := retry.Execute(ctx, r.policy, func(ctx context.Context) ([]domain.Note, error) {
			notes, err := r.store.ListByOwner(ctx, ownerID)
			return notes, terminal(err)
		})
		if err != nil {
			return nil, err
		}
		if err := r.cache.Replace(ctx, notes); err != nil {
			r.logger.Warn("cache refresh failed", "owner", ownerID, "error", err)
		}
		return notes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Note), nil
}

// Create inserts note unless its owner already has a note with the same
// title. The pre-check is not atomic with the insert; stores with a unique
// index close that window, others accept it.
func (r *RemoteNotes) Create(ctx context.Context, note domain.Note) (string, error) {
	if note.OwnerID == "" {
		return "", domain.ErrNotSignedIn
	}
	return retry.Execute(ctx, r.policy, func(ctx context.Context) (string, error) {
		if _, taken, err := r.store.FindByTitle(ctx, note.OwnerID, note.Title); err != nil {
			return "", terminal(err)
		} else if taken {
			return "", retry.Permanent(domain.ErrDuplicateTitle)
		}
		id, err := r.store.Insert(ctx, note)
		return id, terminal(err)
	})
}

// Update merges patch into note id. A title change is checked for uniqueness
// the same way Create checks it.
func (r *RemoteNotes) Update(ctx context.Context, ownerID, id string, patch domain.NotePatch) error {
	if ownerID == "" {
		return domain.ErrNotSignedIn
	}
	_, err := retry.Execute(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		if patch.Title != nil {
			existing, taken, err := r.store.FindByTitle(ctx, ownerID, *patch.Title)
			if err != nil {
				return struct{}{}, terminal(err)
			}
			if taken && existing.ID != id {
				return struct{}{}, retry.Permanent(domain.ErrDuplicateTitle)
			}
		}
		return struct{}{}, terminal(r.store.Update(ctx, ownerID, id, patch))
	})
	return err
}

func (r *RemoteNotes) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrNotSignedIn
	}
	_, err := retry.Execute(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, terminal(r.store.Delete(ctx, ownerID, id))
	})
	return err
}

func (r *RemoteNotes) IncrementMissCount(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrNotSignedIn
	}
	_, err := retry.Execute(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, terminal(r.store.IncrementMissCount(ctx, ownerID, id))
	})
	return err
}

// terminal marks errors that no retry can fix.
func terminal(err error) error {
	if errors.Is(err, domain.ErrDuplicateTitle) || errors.Is(err, domain.ErrNoteNotFound) {
		return retry.Permanent(err)
	}
	return err
}
