package memory

import (
	"context"
	"sync"

	"flashnotes/internal/cache"
)

// KVStore is an in-process cache.Storage. Every write is announced to all
// watchers of the key, including those registered by the writer.
type KVStore struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[string]map[chan cache.Change]struct{}
}

func NewKVStore() *KVStore {
	return &KVStore{
		values:   make(map[string]string),
		watchers: make(map[string]map[chan cache.Change]struct{}),
	}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.notifyLocked(cache.Change{Key: key, Value: value})
	return nil
}

func (s *KVStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	s.notifyLocked(cache.Change{Key: key, Removed: true})
	return nil
}

func (s *KVStore) Watch(ctx context.Context, key string) (<-chan cache.Change, error) {
	ch := make(chan cache.Change, 8)

	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan cache.Change]struct{})
	}
	s.watchers[key][ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[key], ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *KVStore) notifyLocked(change cache.Change) {
	for ch := range s.watchers[change.Key] {
		select {
		case ch <- change:
		default:
			// Drop the oldest pending change; only the latest value matters.
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
}
