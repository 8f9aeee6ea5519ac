// Package app wires the core components (Tenant Registry, Embedder,
// Event Hub, AutoSave) into one struct shared by the HTTP adapter, the
// MCP tool adapter, and the godog step definitions, so every external
// surface dispatches to the identical core operations.
package app

import (
	"context"
	"fmt"
	"sync"

	embedreg "github.com/engram-memory/engram/internal/registry/embed"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
	storereg "github.com/engram-memory/engram/internal/registry/store"
	"github.com/engram-memory/engram/internal/autosave"
	"github.com/engram-memory/engram/internal/config"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/tenant"
)

// App bundles every long-lived component an adapter needs to serve one
// tenant's worth of operations.
type App struct {
	Config   *config.Config
	Registry *tenant.Registry
	Embedder embedreg.Embedder
	Hub      *eventhub.Hub

	mu         sync.Mutex
	autosavers map[string]*autosave.AutoSave // key: tenantID + "\x00" + project
}

// New builds an App from config. The embedder and cache are selected
// here once at startup via the registry Select-at-boot convention; the
// store/session backends are resolved lazily per tenant by the Registry
// itself.
func New(ctx context.Context, cfg *config.Config, reg *tenant.Registry, embedder embedreg.Embedder, hub *eventhub.Hub) *App {
	return &App{
		Config:     cfg,
		Registry:   reg,
		Embedder:   embedder,
		Hub:        hub,
		autosavers: map[string]*autosave.AutoSave{},
	}
}

// Store resolves the Store for a tenant's namespace through the Registry,
// opening it on first use. It checks no quota; write paths call
// Registry.CheckMemoryLimit and Registry.CheckNamespaceLimit themselves.
func (a *App) Store(ctx context.Context, tenantID, namespace string) (storereg.Store, error) {
	return a.Registry.Store(ctx, tenantID, namespace)
}

// AutoSaver returns the per-(tenant, project) AutoSave tracker, creating
// it (and its backing SessionStore) on first use.
func (a *App) AutoSaver(ctx context.Context, tenantID, project string) (*autosave.AutoSave, error) {
	key := tenantID + "\x00" + project
	a.mu.Lock()
	if s, ok := a.autosavers[key]; ok {
		a.mu.Unlock()
		return s, nil
	}
	a.mu.Unlock()

	sessions, err := a.Registry.Sessions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.autosavers[key]; ok {
		return s, nil
	}
	s := autosave.New(sessions, project)
	a.autosavers[key] = s
	return s, nil
}

// Sessions resolves the tenant's SessionStore directly, for handlers
// that don't need an AutoSave tracker (e.g. listing sessions).
func (a *App) Sessions(ctx context.Context, tenantID string) (sessionreg.Store, error) {
	return a.Registry.Sessions(ctx, tenantID)
}
