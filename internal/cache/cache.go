// Package cache mirrors the signed-in owner's notes in persistent key-value
// storage. The remote store is the source of truth; the mirror is replaced
// wholesale after every successful fetch and read when the remote is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"flashnotes/internal/domain"
)

// DefaultKey is the storage slot holding the JSON array of notes.
const DefaultKey = "notes"

// Change is a notification that key was written or removed, possibly by
// another process sharing the same storage.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// Storage is the persistent key-value substrate.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Watch streams changes to key until ctx is done, then closes the channel.
	Watch(ctx context.Context, key string) (<-chan Change, error)
}

// Cache is the local note mirror.
type Cache struct {
	store  Storage
	key    string
	logger *slog.Logger
	mu     sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

func WithKey(key string) Option {
	return func(c *Cache) { c.key = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func New(store Storage, opts ...Option) *Cache {
	c := &Cache{store: store, key: DefaultKey}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Load returns the cached notes. A missing or unreadable entry yields no notes.
func (c *Cache) Load(ctx context.Context) ([]domain.Note, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return c.decode(raw), nil
}

// Replace overwrites the cache with notes.
func (c *Cache) Replace(ctx context.Context, notes []domain.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(ctx, notes)
}

// Clear drops the whole entry, e.g. on sign-out.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Remove(ctx, c.key); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// BumpMissCount increments the cached counter of note id. It reports false
// when the note is not cached.
func (c *Cache) BumpMissCount(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	notes, err := c.Load(ctx)
	if err != nil {
		return false, err
	}
	for i := range notes {
		if notes[i].ID == id {
			notes[i].MissCount++
			return true, c.writeLocked(ctx, notes)
		}
	}
	return false, nil
}

// Subscribe streams the decoded cache contents after every change to the
// storage slot. A removed entry is delivered as an empty deck.
func (c *Cache) Subscribe(ctx context.Context) (<-chan []domain.Note, error) {
	changes, err := c.store.Watch(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("watch cache: %w", err)
	}
	out := make(chan []domain.Note, 1)
	go func() {
		defer close(out)
		for change := range changes {
			var notes []domain.Note
			if !change.Removed {
				notes = c.decode(change.Value)
			}
			select {
			case out <- notes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Cache) writeLocked(ctx context.Context, notes []domain.Note) error {
	if notes == nil {
		notes = []domain.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := c.store.Set(ctx, c.key, string(data)); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (c *Cache) decode(raw string) []domain.Note {
	var notes []domain.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		// A corrupt mirror is treated as empty; the next fetch rewrites it.
		c.logger.Warn("discarding unreadable cache entry", "key", c.key, "error", err)
		return nil
	}
	return notes
}
