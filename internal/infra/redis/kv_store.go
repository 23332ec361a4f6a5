package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"flashnotes/internal/cache"
)

const defaultPrefix = "flashnotes:"

// KVStore backs the local cache with Redis so several processes share one
// slot. Every write is announced on a pub/sub channel; Watch turns those
// announcements back into cache changes.
type KVStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger
	rndMu   sync.Mutex
	rnd     *rand.Rand
	channel string
}

func NewKVStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		client:  client,
		prefix:  defaultPrefix,
		ttl:     ttl,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		channel: defaultPrefix + "changes",
	}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, cache.Change{Key: key, Value: value}, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, s.prefix+key, value, s.ttlWithJitter())
	})
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	return s.write(ctx, cache.Change{Key: key, Removed: true}, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, s.prefix+key)
	})
}

func (s *KVStore) write(ctx context.Context, change cache.Change, cmd func(redis.Pipeliner)) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cmd(pipe)
		pipe.Publish(ctx, s.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", change.Key, err)
	}
	return nil
}

// Watch subscribes to changes of key until ctx is done.
func (s *KVStore) Watch(ctx context.Context, key string) (<-chan cache.Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan cache.Change, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change cache.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Warn("ignoring malformed cache change", "error", err)
					continue
				}
				if change.Key != key {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ttlWithJitter spreads expiry of slots written at the same moment.
func (s *KVStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
