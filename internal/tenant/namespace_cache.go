package tenant

import (
	"context"
	"encoding/json"
	"time"
)

// namespaceCountCacheTTL bounds how stale a tenant's namespace list may be
// before CheckNamespaceLimit falls back to a fresh Analytics scan.
const namespaceCountCacheTTL = 30 * time.Second

type namespaceSnapshot struct {
	count  int
	exists map[string]bool
}

func namespaceCacheKey(tenantID string) string {
	return "tenant:namespaces:" + tenantID
}

// namespaceCountFromCache reads a previously cached namespace snapshot for
// a tenant so the namespace-quota check can use the Cache component rather
// than re-scanning the store on every write. Absent a configured Cache, or
// on a miss, it reports false and the caller re-derives the snapshot from
// Store.Analytics.
func (r *Registry) namespaceCountFromCache(ctx context.Context, tenantID string) (namespaceSnapshot, bool) {
	if r.cache == nil || !r.cache.Available() {
		return namespaceSnapshot{}, false
	}
	raw, ok, err := r.cache.Get(ctx, namespaceCacheKey(tenantID))
	if err != nil || !ok {
		return namespaceSnapshot{}, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return namespaceSnapshot{}, false
	}
	exists := make(map[string]bool, len(names))
	for _, n := range names {
		exists[n] = true
	}
	return namespaceSnapshot{count: len(names), exists: exists}, true
}

// cacheNamespaceCount stores the namespace set seen in a fresh Analytics
// scan so the next write for this tenant can skip the scan.
func (r *Registry) cacheNamespaceCount(ctx context.Context, tenantID string, counts map[string]int) {
	if r.cache == nil || !r.cache.Available() {
		return
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	_ = r.cache.Set(ctx, namespaceCacheKey(tenantID), raw, namespaceCountCacheTTL)
}

// InvalidateNamespaceCache drops a tenant's cached namespace snapshot. The
// write path calls this after every successful store, so the next quota
// check sees a newly used namespace immediately instead of waiting out
// the TTL.
func (r *Registry) InvalidateNamespaceCache(ctx context.Context, tenantID string) {
	if r.cache == nil || !r.cache.Available() {
		return
	}
	_ = r.cache.Delete(ctx, namespaceCacheKey(tenantID))
}
