// Package mcp implements the mcp sub-command, which exposes the memory
// service over the Model Context Protocol's stdio transport instead of
// HTTP. Unlike the HTTP adapter, stdio carries no per-request
// Authorization/X-API-Key header, so the process is bound to one tenant
// for its lifetime via --tenant-id.
package mcp

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/mark3labs/mcp-go/server"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/config"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/mcptools"
	cachereg "github.com/engram-memory/engram/internal/registry/cache"
	embedreg "github.com/engram-memory/engram/internal/registry/embed"
	"github.com/engram-memory/engram/internal/tenant"

	// Import plugins to trigger init() registration.
	_ "github.com/engram-memory/engram/internal/plugin/cache/noop"
	_ "github.com/engram-memory/engram/internal/plugin/cache/redis"
	_ "github.com/engram-memory/engram/internal/plugin/cache/ristretto"
	_ "github.com/engram-memory/engram/internal/plugin/embed/local"
	_ "github.com/engram-memory/engram/internal/plugin/embed/none"
	_ "github.com/engram-memory/engram/internal/plugin/session/sqlite"
	_ "github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

// Command returns the mcp sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var tenantID string
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the memory_* MCP tool set over stdio for a single tenant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "tenant-id",
				Sources:     cli.EnvVars("ENGRAM_MCP_TENANT_ID"),
				Destination: &tenantID,
				Required:    true,
				Usage:       "Tenant id this stdio session operates as",
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Sources:     cli.EnvVars("ENGRAM_DATA_DIR"),
				Destination: &cfg.DataDir,
				Value:       cfg.DataDir,
				Usage:       "Root directory for per-tenant database files",
			},
			&cli.StringFlag{
				Name:        "embedding-kind",
				Sources:     cli.EnvVars("ENGRAM_EMBED_TYPE"),
				Destination: &cfg.EmbedType,
				Value:       cfg.EmbedType,
				Usage:       "Embedding provider (local|none)",
			},
			&cli.IntFlag{
				Name:        "embedding-dimension",
				Sources:     cli.EnvVars("ENGRAM_EMBED_DIMENSION"),
				Destination: &cfg.EmbedDimension,
				Value:       cfg.EmbedDimension,
				Usage:       "Vector width produced by the embedding provider",
			},
			&cli.StringFlag{
				Name:        "cache-kind",
				Sources:     cli.EnvVars("ENGRAM_CACHE_TYPE"),
				Destination: &cfg.CacheType,
				Value:       cfg.CacheType,
				Usage:       "Cache backend (ristretto|redis|none)",
			},
			&cli.StringFlag{
				Name:        "redis-url",
				Sources:     cli.EnvVars("ENGRAM_REDIS_URL"),
				Destination: &cfg.RedisURL,
				Usage:       "Redis connection URL for the redis cache backend",
			},
			&cli.StringFlag{
				Name:        "default-tier",
				Sources:     cli.EnvVars("ENGRAM_DEFAULT_TIER"),
				Destination: &cfg.DefaultTier,
				Value:       cfg.DefaultTier,
				Usage:       "Tier assigned to a tenant seen for the first time",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(config.WithContext(ctx, &cfg), cfg, tenantID)
		},
	}
}

func run(ctx context.Context, cfg config.Config, tenantID string) error {
	log.Info("Starting engram MCP stdio server", "tenantID", tenantID, "dataDir", cfg.DataDir)

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
			return fmt.Errorf("embedding backend %q: %w", cfg.EmbedType, err)
		}
		embedder, err = embedLoader(ctx, cfg.EmbedDimension)
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	tierOf := func(string) string { return cfg.DefaultTier }
	registry := tenant.New(cfg.DataDir, "sqlite", "sqlite", cfg.EmbedDimension, tierOf, cache)
	defer registry.Close()

	hub := eventhub.New(nil)
	defer hub.Close()

	core := app.New(ctx, &cfg, registry, embedder, hub)
	mcpServer := mcptools.NewServer(core, tenantID)

	return server.ServeStdio(mcpServer)
}
