package bdd

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/config"
	"github.com/engram-memory/engram/internal/eventhub"
	"github.com/engram-memory/engram/internal/tenant"

	// Plugins register themselves via init(); the in-process core needs a
	// real store/session backend plus a cache and embedder to boot, same
	// as internal/cmd/serve does for the HTTP adapter.
	registrycache "github.com/engram-memory/engram/internal/registry/cache"
	registryembed "github.com/engram-memory/engram/internal/registry/embed"
	_ "github.com/engram-memory/engram/internal/plugin/cache/noop"
	_ "github.com/engram-memory/engram/internal/plugin/embed/local"
	_ "github.com/engram-memory/engram/internal/plugin/session/sqlite"
	_ "github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

func TestFeatures(t *testing.T) {
	ctx := context.Background()

	embedLoader, err := registryembed.Select("local")
	require.NoError(t, err)
	embedder, err := embedLoader(ctx, 64)
	require.NoError(t, err)

	cacheLoader, err := registrycache.Select("none")
	require.NoError(t, err)
	cache, err := cacheLoader(ctx)
	require.NoError(t, err)

	dataDir := t.TempDir()
	reg := tenant.New(dataDir, "sqlite", "sqlite", embedder.Dimension(), nil, cache)
	t.Cleanup(func() { _ = reg.Close() })

	hub := eventhub.New(nil)
	t.Cleanup(func() { _ = hub.Close() })

	cfg := config.DefaultConfig()
	a := app.New(ctx, &cfg, reg, embedder, hub)
	suite := &Suite{App: a}

	opts := godog.Options{
		Format:    "progress",
		Paths:     []string{"features"},
		Randomize: 0,
	}
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" {
			opts.Format = "pretty"
		}
	}

	status := godog.TestSuite{
		Name:                "memory_core",
		ScenarioInitializer: suite.InitializeScenario,
		Options:             &opts,
	}.Run()

	if status != 0 {
		t.Fatalf("non-zero status returned from godog, %d", status)
	}
}
