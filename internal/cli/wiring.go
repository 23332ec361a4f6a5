package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"flashnotes/internal/app"
	"flashnotes/internal/auth"
	"flashnotes/internal/cache"
	"flashnotes/internal/config"
	"flashnotes/internal/infra/filekv"
	"flashnotes/internal/infra/memory"
	"flashnotes/internal/infra/postgres"
	redisstore "flashnotes/internal/infra/redis"
	"flashnotes/internal/retry"
)

// components is everything one workspace needs, built from config.
type components struct {
	logger    *slog.Logger
	cache     *cache.Cache
	events    *retry.Broker
	remote    *app.RemoteNotes
	list      *app.NoteList
	provider  *auth.Provider
	workspace *app.Workspace
	closers   []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	c := &components{logger: logger, events: retry.NewBroker()}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, func() { _ = redisClient.Close() })
	}

	var storage cache.Storage
	switch cfg.CacheBackend() {
	case config.BackendRedis:
		storage = redisstore.NewKVStore(redisClient, config.Duration(cfg.Redis.TTL, 0), logger)
	case config.BackendFile:
		fs, err := filekv.New(cfg.Cache.Path, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		storage = fs
	default:
		storage = memory.NewKVStore()
	}
	cacheOpts := []cache.Option{cache.WithLogger(logger)}
	if cfg.Cache.Key != "" {
		cacheOpts = append(cacheOpts, cache.WithKey(cfg.Cache.Key))
	}
	c.cache = cache.New(storage, cacheOpts...)

	var store app.DocumentStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		store = postgres.NewNoteStore(pool)
	} else {
		logger.Warn("postgres not configured, notes live in memory only")
		store = memory.NewNoteStore()
	}

	policy := retry.New(cfg.RetryConfig(), retry.WithPublisher(c.events), retry.WithLogger(logger))
	c.remote = app.NewRemoteNotes(store, policy, c.cache, logger)
	c.list = app.NewNoteList(c.remote, c.cache, logger)

	secret := cfg.Auth.Secret
	if secret == "" {
		logger.Warn("auth.secret not set, using an insecure development secret")
		secret = "dev-secret"
	}
	c.provider = auth.NewProvider(secret, config.Duration(cfg.Auth.TokenTTL, 24*time.Hour))
	c.workspace = app.NewWorkspace(c.provider, c.cache, logger)
	c.closers = append(c.closers, c.workspace.Close)
	return c, nil
}
