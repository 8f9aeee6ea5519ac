// Package config holds process-wide configuration for the engram memory
// service, built once at startup and threaded through components via
// context.Context.
package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context. Returns nil if none was set.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the memory service.
type Config struct {
	// DataDir is the root directory under which each tenant's per-tenant
	// database file is created; tenant storage is isolated at the
	// filesystem path level.
	DataDir string

	// Listener
	Port              int
	ReadHeaderTimeout time.Duration

	// EmbedType selects the embed registry plugin: "local" or "none".
	EmbedType string
	// EmbedDimension is the vector width produced by the "local" embedder.
	EmbedDimension int

	// CacheType selects the cache registry plugin: "ristretto", "redis" or "none".
	CacheType string
	RedisURL  string

	// EventHub: when set, change events additionally fan out across
	// instances via Redis Pub/Sub. Empty disables it.
	EventHubRedisURL string

	// DefaultTier is the tier assigned to a tenant seen for the first time.
	DefaultTier string

	// Quota defaults. They are parsed from flags and environment but no
	// component reads them: quota checks use the tenant's tier Limits.
	DefaultMaxMemories   int
	DefaultMaxNamespaces int

	// DrainTimeout is how long graceful shutdown waits for in-flight
	// requests (seconds).
	DrainTimeout int

	// CORS
	CORSEnabled bool
	CORSOrigins string

	// Body size limit (bytes).
	MaxBodySize int64

	// TTL sweep: how often cleanup_expired runs across all loaded tenants.
	// Zero disables the background sweep (it still runs on demand).
	TTLSweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:              "./data",
		Port:                 8080,
		ReadHeaderTimeout:    5 * time.Second,
		EmbedType:            "local",
		EmbedDimension:       384,
		CacheType:            "ristretto",
		DefaultTier:          "free",
		DefaultMaxMemories:   1000,
		DefaultMaxNamespaces: 10,
		DrainTimeout:         30,
		MaxBodySize:          2 * 1024 * 1024,
		TTLSweepInterval:     10 * time.Minute,
	}
}

// FromEnv overlays environment variables (prefixed ENGRAM_) onto a copy
// of the given base Config.
func FromEnv(base Config) Config {
	cfg := base
	if v := os.Getenv("ENGRAM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := envInt("ENGRAM_PORT"); v != 0 {
		cfg.Port = v
	}
	if v := os.Getenv("ENGRAM_EMBED_TYPE"); v != "" {
		cfg.EmbedType = v
	}
	if v := envInt("ENGRAM_EMBED_DIMENSION"); v != 0 {
		cfg.EmbedDimension = v
	}
	if v := os.Getenv("ENGRAM_CACHE_TYPE"); v != "" {
		cfg.CacheType = v
	}
	if v := os.Getenv("ENGRAM_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("ENGRAM_EVENTHUB_REDIS_URL"); v != "" {
		cfg.EventHubRedisURL = v
	}
	if v := os.Getenv("ENGRAM_DEFAULT_TIER"); v != "" {
		cfg.DefaultTier = v
	}
	if v := envInt("ENGRAM_DEFAULT_MAX_MEMORIES"); v != 0 {
		cfg.DefaultMaxMemories = v
	}
	if v := envInt("ENGRAM_DEFAULT_MAX_NAMESPACES"); v != 0 {
		cfg.DefaultMaxNamespaces = v
	}
	if v := os.Getenv("ENGRAM_CORS_ORIGINS"); v != "" {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = v
	}
	return cfg
}

func envInt(name string) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
