package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flashnotes/internal/retry"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Key     string `yaml:"key"`
	} `yaml:"cache"`
	Retry struct {
		Timeout  string `yaml:"timeout"`
		Attempts int    `yaml:"attempts"`
		Step     string `yaml:"step"`
	} `yaml:"retry"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.CacheBackend() {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache backend %q needs redis.addr", BackendRedis)
		}
	case BackendFile:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache backend %q needs cache.path", BackendFile)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must not be negative")
	}
	return nil
}

// CacheBackend returns the configured backend, memory when unset.
func (c Config) CacheBackend() string {
	if c.Cache.Backend == "" {
		return BackendMemory
	}
	return c.Cache.Backend
}

// RetryConfig fills unset retry fields with retry.DefaultConfig.
func (c Config) RetryConfig() retry.Config {
	rc := retry.Config{
		Timeout:     Duration(c.Retry.Timeout, retry.DefaultConfig.Timeout),
		MaxAttempts: c.Retry.Attempts,
		Step:        Duration(c.Retry.Step, retry.DefaultConfig.Step),
	}
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = retry.DefaultConfig.MaxAttempts
	}
	return rc
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
