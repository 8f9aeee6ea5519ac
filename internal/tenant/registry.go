package tenant

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	cachereg "github.com/engram-memory/engram/internal/registry/cache"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
	storereg "github.com/engram-memory/engram/internal/registry/store"
)

// TierOf resolves a tenant to its tier name. The HTTP/MCP adapters set
// this from an API-key lookup; tests and the default wiring can return a
// fixed tier for every tenant.
type TierOf func(tenantID string) string

// Registry lazily creates and caches one Store per (tenant, namespace)
// and one SessionStore per tenant, grounded on the filesystem-path
// isolation original_source/server/api.py's _mem()/_sessions() helpers
// use: one sqlite file per tenant, looked up from a dict keyed by tenant
// id and created on first access.
type Registry struct {
	dataDir        string
	storeBackend   string
	sessionBackend string
	embedDimension int
	tierOf         TierOf
	cache          cachereg.Cache

	mu       sync.Mutex
	stores   map[string]storereg.Store   // key: tenantID + "\x00" + namespace
	sessions map[string]sessionreg.Store // key: tenantID
	inFlight map[string]chan struct{}    // per-key creation lock, see acquire/release
}

// New builds a Registry. storeBackend/sessionBackend name plugins already
// registered via storereg.Register/sessionreg.Register (e.g. "sqlite").
// tierOf may be nil, in which case every tenant resolves to the Free tier.
func New(dataDir, storeBackend, sessionBackend string, embedDimension int, tierOf TierOf, cache cachereg.Cache) *Registry {
	if tierOf == nil {
		tierOf = func(string) string { return "free" }
	}
	return &Registry{
		dataDir:        dataDir,
		storeBackend:   storeBackend,
		sessionBackend: sessionBackend,
		embedDimension: embedDimension,
		tierOf:         tierOf,
		cache:          cache,
		stores:         map[string]storereg.Store{},
		sessions:       map[string]sessionreg.Store{},
		inFlight:       map[string]chan struct{}{},
	}
}

// Tier returns the resolved Limits for a tenant.
func (r *Registry) Tier(tenantID string) Limits {
	return GetTier(r.tierOf(tenantID))
}

func storeKey(tenantID, namespace string) string {
	return tenantID + "\x00" + namespace
}

// acquire runs fn exclusively for the given key: concurrent callers for
// the same key block on the first caller's in-flight channel instead of
// each opening their own database handle, so concurrent first accesses
// for the same tenant produce exactly one Store. The corpus carries no
// singleflight-style library, so this is hand-rolled over sync.Mutex +
// channel, the standard library's own recipe for the pattern.
//
// release takes the winning caller's commit closure (publishing the new
// Store/SessionStore into the cache map, or nil on failure) and runs it
// under the same critical section as the in-flight bookkeeping, so a
// waiter unblocked by the channel close never observes a cache miss for
// a key whose creation already finished.
func (r *Registry) acquire(key string) (wait func(), release func(commit func())) {
	r.mu.Lock()
	if ch, ok := r.inFlight[key]; ok {
		r.mu.Unlock()
		return func() { <-ch }, func(func()) {}
	}
	ch := make(chan struct{})
	r.inFlight[key] = ch
	r.mu.Unlock()
	return func() {}, func(commit func()) {
		r.mu.Lock()
		if commit != nil {
			commit()
		}
		delete(r.inFlight, key)
		r.mu.Unlock()
		close(ch)
	}
}

// Store returns the Store for (tenantID, namespace), creating its
// backing file on first access.
func (r *Registry) Store(ctx context.Context, tenantID, namespace string) (storereg.Store, error) {
	key := storeKey(tenantID, namespace)

	r.mu.Lock()
	if s, ok := r.stores[key]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	wait, release := r.acquire("store:" + key)
	wait()
	r.mu.Lock()
	if s, ok := r.stores[key]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	loader, err := storereg.Select(r.storeBackend)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.dataDir, sanitizeTenantID(tenantID), namespace+".db")
	s, err := loader(ctx, path, r.embedDimension)
	if err != nil {
		release(nil)
		return nil, fmt.Errorf("opening store for tenant %q namespace %q: %w", tenantID, namespace, err)
	}
	release(func() { r.stores[key] = s })
	return s, nil
}

// Sessions returns the SessionStore for tenantID, creating its backing
// file on first access.
func (r *Registry) Sessions(ctx context.Context, tenantID string) (sessionreg.Store, error) {
	r.mu.Lock()
	if s, ok := r.sessions[tenantID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	wait, release := r.acquire("session:" + tenantID)
	wait()
	r.mu.Lock()
	if s, ok := r.sessions[tenantID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	loader, err := sessionreg.Select(r.sessionBackend)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.dataDir, sanitizeTenantID(tenantID), "sessions.db")
	s, err := loader(ctx, path)
	if err != nil {
		release(nil)
		return nil, fmt.Errorf("opening session store for tenant %q: %w", tenantID, err)
	}
	release(func() { r.sessions[tenantID] = s })
	return s, nil
}

// CheckMemoryLimit enforces the tier's max_memories quota, grounded on
// original_source/server/api.py's _check_memory_limit: a limit of zero
// or less means unlimited, otherwise the tenant's current total must be
// strictly below the limit before another memory can be stored.
func (r *Registry) CheckMemoryLimit(ctx context.Context, st storereg.Store, tenantID, namespace string) error {
	limit := r.Tier(tenantID).MaxMemories
	if limit <= 0 {
		return nil
	}
	stats, err := st.Stats(ctx, "")
	if err != nil {
		return err
	}
	if stats.TotalMemories >= limit {
		return storereg.QuotaExceededError{Quota: "max_memories", Limit: limit}
	}
	return nil
}

// CheckNamespaceLimit enforces the tier's max_namespaces quota, grounded
// on original_source/server/api.py's _check_namespace_limit: it only
// blocks a write that would introduce a namespace the tenant has never
// used before — writing more memories into an existing namespace never
// trips it, regardless of how many memories that namespace already has.
func (r *Registry) CheckNamespaceLimit(ctx context.Context, st storereg.Store, tenantID, namespace string) error {
	limit := r.Tier(tenantID).MaxNamespaces
	if limit <= 0 {
		return nil
	}
	if cached, ok := r.namespaceCountFromCache(ctx, tenantID); ok {
		if cached.exists[namespace] || cached.count < limit {
			return nil
		}
		return storereg.QuotaExceededError{Quota: "max_namespaces", Limit: limit}
	}

	analytics, err := st.Analytics(ctx, "")
	if err != nil {
		return err
	}
	_, exists := analytics.NamespaceCounts[namespace]
	r.cacheNamespaceCount(ctx, tenantID, analytics.NamespaceCounts)
	if exists || len(analytics.NamespaceCounts) < limit {
		return nil
	}
	return storereg.QuotaExceededError{Quota: "max_namespaces", Limit: limit}
}

// CheckFeature gates a tier-flagged capability, returning
// FeatureNotEnabledError when the tenant's tier has it turned off. The
// gated features are semantic_search, websocket, analytics, links,
// sessions, autosave and synapse_proxy; anything else is ungated.
func (r *Registry) CheckFeature(tenantID, feature string) error {
	limits := r.Tier(tenantID)
	enabled := false
	switch feature {
	case "semantic_search":
		enabled = limits.SemanticSearch
	case "websocket":
		enabled = limits.Websocket
	case "analytics":
		enabled = limits.Analytics
	case "links":
		enabled = limits.Links
	case "sessions":
		enabled = limits.Sessions
	case "autosave":
		enabled = limits.AutoSave
	case "synapse_proxy":
		enabled = limits.SynapseProxy
	default:
		enabled = true
	}
	if !enabled {
		return storereg.FeatureNotEnabledError{Feature: feature}
	}
	return nil
}

// SweepExpired runs CleanupExpired against every Store this registry has
// opened so far, returning the number of memories removed per (tenant,
// namespace) key. Stores opened after a sweep starts are picked up on
// the next tick; it never opens a store itself.
func (r *Registry) SweepExpired(ctx context.Context) map[string]int {
	r.mu.Lock()
	snapshot := make(map[string]storereg.Store, len(r.stores))
	for k, s := range r.stores {
		snapshot[k] = s
	}
	r.mu.Unlock()

	removed := make(map[string]int, len(snapshot))
	for key, s := range snapshot {
		n, err := s.CleanupExpired(ctx, "")
		if err != nil {
			continue
		}
		if n > 0 {
			removed[key] = n
		}
	}
	return removed
}

// Close closes every Store and SessionStore this registry has opened.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range r.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sanitizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "default"
	}
	return filepath.Base(tenantID)
}
