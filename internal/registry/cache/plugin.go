// Package cache defines a generic byte cache and its plugin registry.
// A registry/cache shaped around one domain type (CachedMemoryEntries
// keyed by conversation+client) would overfit; this module's only cache
// consumer is the Tenant Registry's per-tenant namespace-count cache, so
// the interface is generalized to plain key/value bytes and the
// domain-specific encoding lives in the caller instead.
package cache

import (
	"context"
	"fmt"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Cache.
func WithContext(ctx context.Context, c Cache) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the Cache from the context, or nil if none was set.
func FromContext(ctx context.Context) Cache {
	c, _ := ctx.Value(contextKey{}).(Cache)
	return c
}

// Cache is a generic byte-addressed cache with optional TTL.
type Cache interface {
	Available() bool
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Loader creates a Cache from config.
type Loader func(ctx context.Context) (Cache, error)

// Plugin names a cache backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin. Called from each backend's init().
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
