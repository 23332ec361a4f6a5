package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"flashnotes/internal/app"
	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
	"flashnotes/internal/infra/memory"
	"flashnotes/internal/retry"
)

var errUnavailable = errors.New("store unavailable")

// flakyStore fails the next N calls of a method before delegating.
type flakyStore struct {
	*memory.NoteStore

	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func newFlakyStore(seed ...domain.Note) *flakyStore {
	return &flakyStore{
		NoteStore: memory.NewNoteStore(seed...),
		failures:  make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (s *flakyStore) failNext(method string, n int) {
	s.mu.Lock()
	s.failures[method] = n
	s.mu.Unlock()
}

func (s *flakyStore) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *flakyStore) hit(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.failures[method] > 0 {
		s.failures[method]--
		return errUnavailable
	}
	return nil
}

func (s *flakyStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Note, error) {
	if err := s.hit("ListByOwner"); err != nil {
		return nil, err
	}
	return s.NoteStore.ListByOwner(ctx, ownerID)
}

func (s *flakyStore) FindByTitle(ctx context.Context, ownerID, title string) (domain.Note, bool, error) {
	if err := s.hit("FindByTitle"); err != nil {
		return domain.Note{}, false, err
	}
	return s.NoteStore.FindByTitle(ctx, ownerID, title)
}

func (s *flakyStore) Insert(ctx context.Context, note domain.Note) (string, error) {
	if err := s.hit("Insert"); err != nil {
		return "", err
	}
	return s.NoteStore.Insert(ctx, note)
}

func (s *flakyStore) Update(ctx context.Context, ownerID, id string, patch domain.NotePatch) error {
	if err := s.hit("Update"); err != nil {
		return err
	}
	return s.NoteStore.Update(ctx, ownerID, id, patch)
}

func (s *flakyStore) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.hit("Delete"); err != nil {
		return err
	}
	return s.NoteStore.Delete(ctx, ownerID, id)
}

func (s *flakyStore) IncrementMissCount(ctx context.Context, ownerID, id string) error {
	if err := s.hit("IncrementMissCount"); err != nil {
		return err
	}
	return s.NoteStore.IncrementMissCount(ctx, ownerID, id)
}

type testEnv struct {
	store  *flakyStore
	kv     *memory.KVStore
	cache  *cache.Cache
	policy *retry.Policy
	remote *app.RemoteNotes
	list   *app.NoteList
}

var testClock = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, seed ...domain.Note) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{store: newFlakyStore(seed...), kv: memory.NewKVStore()}
	env.cache = cache.New(env.kv, cache.WithLogger(logger))
	env.policy = retry.New(retry.Config{Timeout: time.Second, MaxAttempts: 3, Step: time.Millisecond}, retry.WithLogger(logger))
	env.remote = app.NewRemoteNotes(env.store, env.policy, env.cache, logger)
	env.list = app.NewNoteListWithClock(env.remote, env.cache, logger, func() time.Time { return testClock })
	return env
}

func seedNotes() []domain.Note {
	return []domain.Note{
		{ID: "n1", OwnerID: "alice", Title: "Quiz1", Question: "2+2?", Answer: "4", CreatedAt: testClock.Add(-2 * time.Hour)},
		{ID: "n2", OwnerID: "alice", Title: "Capitals", Question: "Capital of France?", Answer: "Paris", CreatedAt: testClock.Add(-time.Hour), MissCount: 3},
		{ID: "n3", OwnerID: "bob", Title: "Quiz1", Question: "1+1?", Answer: "2", CreatedAt: testClock},
	}
}
