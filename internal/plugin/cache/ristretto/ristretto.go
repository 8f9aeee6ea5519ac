// Package ristretto implements the default in-process Cache backend using
// dgraph-io/ristretto, selected when no Redis URL is configured.
package ristretto

import (
	"context"
	"time"

	ristrettov2 "github.com/dgraph-io/ristretto/v2"

	"github.com/engram-memory/engram/internal/config"
	registrycache "github.com/engram-memory/engram/internal/registry/cache"
)

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "ristretto",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.Cache, error) {
	_ = config.FromContext(ctx)
	c, err := ristrettov2.NewCache(&ristrettov2.Config[string, []byte]{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Cache wraps a ristretto in-process cache.
type Cache struct {
	cache *ristrettov2.Cache[string, []byte]
}

func (c *Cache) Available() bool { return true }

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.cache.Get(key)
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	} else {
		c.cache.Set(key, value, int64(len(value)))
	}
	c.cache.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.cache.Del(key)
	return nil
}

var _ registrycache.Cache = (*Cache)(nil)
