// Package noop implements the no-op Cache backend used in tests and when
// caching is explicitly disabled.
package noop

import (
	"context"
	"time"

	"github.com/engram-memory/engram/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(_ context.Context) (cache.Cache, error) {
			return &Cache{}, nil
		},
	})
}

// Cache is the no-op implementation.
type Cache struct{}

func (c *Cache) Available() bool { return false }
func (c *Cache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *Cache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *Cache) Delete(_ context.Context, _ string) error                        { return nil }

var _ cache.Cache = (*Cache)(nil)
