package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/config"
	"github.com/engram-memory/engram/internal/eventhub"
	cachereg "github.com/engram-memory/engram/internal/registry/cache"
	embedreg "github.com/engram-memory/engram/internal/registry/embed"
	registryroute "github.com/engram-memory/engram/internal/registry/route"
	"github.com/engram-memory/engram/internal/security"
	"github.com/engram-memory/engram/internal/tenant"

	routeautosave "github.com/engram-memory/engram/internal/plugin/route/autosave"
	routeevents "github.com/engram-memory/engram/internal/plugin/route/events"
	routelinks "github.com/engram-memory/engram/internal/plugin/route/links"
	routememories "github.com/engram-memory/engram/internal/plugin/route/memories"
	routesearch "github.com/engram-memory/engram/internal/plugin/route/search"
	routesessions "github.com/engram-memory/engram/internal/plugin/route/sessions"
	routesystem "github.com/engram-memory/engram/internal/plugin/route/system"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config   *config.Config
	Registry *tenant.Registry
	Hub      *eventhub.Hub
	Router   *gin.Engine
	Running  *RunningServer
}

// Shutdown gracefully drains in-flight requests, then closes every
// per-tenant database handle and the event hub's backplane.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Running.Close(ctx); err != nil {
		log.Error("listener shutdown error", "err", err)
	}
	if err := s.Hub.Close(); err != nil {
		log.Error("event hub shutdown error", "err", err)
	}
	return s.Registry.Close()
}

// StartServer initializes every subsystem and starts the HTTP listener.
// Use cfg.Port=0 for a random port; the bound port is Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting engram memory service",
		"port", cfg.Port,
		"dataDir", cfg.DataDir,
		"cache", cfg.CacheType,
		"embedding", cfg.EmbedType,
	)

	security.InitMetrics(nil)

	var cache cachereg.Cache
	if cacheLoader, err := cachereg.Select(cfg.CacheType); err != nil {
		log.Warn("cache backend not available, namespace-count caching disabled", "cache", cfg.CacheType, "err", err)
	} else if c, err := cacheLoader(ctx); err != nil {
		log.Warn("failed to initialize cache", "cache", cfg.CacheType, "err", err)
	} else {
		cache = c
	}

	var embedder embedreg.Embedder
	if cfg.EmbedType != "" && cfg.EmbedType != "none" {
		embedLoader, err := embedreg.Select(cfg.EmbedType)
		if err != nil {
			return nil, fmt.Errorf("embedding backend %q: %w", cfg.EmbedType, err)
		}
		embedder, err = embedLoader(ctx, cfg.EmbedDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	tierOf := func(tenantID string) string { return cfg.DefaultTier }
	registry := tenant.New(cfg.DataDir, "sqlite", "sqlite", cfg.EmbedDimension, tierOf, cache)

	var backplane eventhub.Backplane
	if cfg.EventHubRedisURL != "" {
		bp, err := eventhub.NewRedisBackplane(cfg.EventHubRedisURL)
		if err != nil {
			log.Warn("event hub backplane unavailable, falling back to single-instance fanout", "err", err)
		} else {
			backplane = bp
		}
	}
	hub := eventhub.New(backplane)

	core := app.New(ctx, cfg, registry, embedder, hub)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(security.AccessLogMiddleware("/health", "/v1/health", "/ready", "/metrics"))
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	resolver := security.NewTenantResolver(apiKeysFromEnv())
	auth := security.AuthMiddleware(resolver)

	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}
	for _, loader := range registryroute.ManagementRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load management routes: %w", err)
		}
	}

	routememories.MountRoutes(router, core, auth)
	routesearch.MountRoutes(router, core, auth)
	routelinks.MountRoutes(router, core, auth)
	routesessions.MountRoutes(router, core, auth)
	routeautosave.MountRoutes(router, core, auth)
	routeevents.MountRoutes(router, core, auth)

	if cfg.TTLSweepInterval > 0 {
		go runTTLSweep(ctx, registry, cfg.TTLSweepInterval)
	}

	running, err := StartListener(ListenerOptions{
		Port:              cfg.Port,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, router)
	if err != nil {
		return nil, err
	}

	log.Info("Server listening", "port", running.Port)
	routesystem.MarkReady()

	return &Server{
		Config:   cfg,
		Registry: registry,
		Hub:      hub,
		Router:   router,
		Running:  running,
	}, nil
}

// runTTLSweep periodically expires memories past their TTL across every
// tenant store opened so far, until ctx is canceled.
func runTTLSweep(ctx context.Context, registry *tenant.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := registry.SweepExpired(ctx)
			if len(removed) > 0 {
				log.Info("ttl sweep removed expired memories", "stores", len(removed))
			}
		}
	}
}
