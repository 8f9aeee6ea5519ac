package serve

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/engram-memory/engram/internal/config"

	// Import plugins to trigger init() registration.
	_ "github.com/engram-memory/engram/internal/plugin/cache/noop"
	_ "github.com/engram-memory/engram/internal/plugin/cache/redis"
	_ "github.com/engram-memory/engram/internal/plugin/cache/ristretto"
	_ "github.com/engram-memory/engram/internal/plugin/embed/local"
	_ "github.com/engram-memory/engram/internal/plugin/embed/none"
	_ "github.com/engram-memory/engram/internal/plugin/route/system"
	_ "github.com/engram-memory/engram/internal/plugin/session/sqlite"
	_ "github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	readHeaderTimeoutSecs := int(cfg.ReadHeaderTimeout.Seconds())
	maxBodySizeBytes := int(cfg.MaxBodySize)
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the engram memory service",
		CustomHelpTemplate: cli.CommandHelpTemplate + `NOTES:
   Per-client API keys are configured one per client ID:
   ENGRAM_API_KEYS_<CLIENT_ID>=key1,key2,...

   Example:
   ENGRAM_API_KEYS_AGENT_A=secret-key-1
`,
		Flags: flags(&cfg, &readHeaderTimeoutSecs, &maxBodySizeBytes),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.MaxBodySize = int64(maxBodySizeBytes)
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs, maxBodySizeBytes *int) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Category:    "Server:",
			Sources:     cli.EnvVars("ENGRAM_DATA_DIR"),
			Destination: &cfg.DataDir,
			Value:       cfg.DataDir,
			Usage:       "Root directory for per-tenant database files",
		},
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("ENGRAM_PORT"),
			Destination: &cfg.Port,
			Value:       cfg.Port,
			Usage:       "HTTP server port",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("ENGRAM_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.IntFlag{
			Name:        "drain-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("ENGRAM_DRAIN_TIMEOUT_SECONDS"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Seconds to wait for in-flight requests during shutdown",
		},

		// ── Embedding ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "embedding-kind",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("ENGRAM_EMBED_TYPE"),
			Destination: &cfg.EmbedType,
			Value:       cfg.EmbedType,
			Usage:       "Embedding provider (local|none)",
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("ENGRAM_EMBED_DIMENSION"),
			Destination: &cfg.EmbedDimension,
			Value:       cfg.EmbedDimension,
			Usage:       "Vector width produced by the embedding provider",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("ENGRAM_CACHE_TYPE"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Cache backend (ristretto|redis|none)",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("ENGRAM_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL for the redis cache backend",
		},
		&cli.StringFlag{
			Name:        "eventhub-redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("ENGRAM_EVENTHUB_REDIS_URL"),
			Destination: &cfg.EventHubRedisURL,
			Usage:       "Redis connection URL for cross-instance WebSocket event fanout; empty disables it",
		},

		// ── Tiers ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "default-tier",
			Category:    "Tiers:",
			Sources:     cli.EnvVars("ENGRAM_DEFAULT_TIER"),
			Destination: &cfg.DefaultTier,
			Value:       cfg.DefaultTier,
			Usage:       "Tier assigned to a tenant seen for the first time (free|pro|enterprise)",
		},

		// ── HTTP ──────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cors-origins",
			Category:    "HTTP:",
			Sources:     cli.EnvVars("ENGRAM_CORS_ORIGINS"),
			Destination: &cfg.CORSOrigins,
			Usage:       "Comma-separated allowed CORS origins; non-empty enables CORS",
		},
		&cli.IntFlag{
			Name:        "max-body-size-bytes",
			Category:    "HTTP:",
			Sources:     cli.EnvVars("ENGRAM_MAX_BODY_SIZE"),
			Destination: maxBodySizeBytes,
			Value:       *maxBodySizeBytes,
			Usage:       "Maximum request body size in bytes",
		},
		&cli.DurationFlag{
			Name:        "ttl-sweep-interval",
			Category:    "HTTP:",
			Sources:     cli.EnvVars("ENGRAM_TTL_SWEEP_INTERVAL"),
			Destination: &cfg.TTLSweepInterval,
			Value:       cfg.TTLSweepInterval,
			Usage:       "How often expired memories are swept across loaded tenants; 0 disables it",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.CORSOrigins != "" {
		cfg.CORSEnabled = true
	}

	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

// apiKeysFromEnv builds the API-key-to-tenant-id map from
// ENGRAM_API_KEYS_<CLIENT_ID> environment variables, each a comma
// separated list of keys that all resolve to that client ID as tenant.
func apiKeysFromEnv() map[string]string {
	keys := map[string]string{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		clientID, ok := strings.CutPrefix(name, "ENGRAM_API_KEYS_")
		if !ok || clientID == "" {
			continue
		}
		for _, key := range strings.Split(value, ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				keys[key] = clientID
			}
		}
	}
	return keys
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	}
}
