package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"

	_ "github.com/engram-memory/engram/internal/plugin/session/sqlite"
	_ "github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

func TestStoreIsCreatedLazilyAndReused(t *testing.T) {
	ctx := context.Background()
	reg := New(t.TempDir(), "sqlite", "sqlite", 8, nil, nil)

	s1, err := reg.Store(ctx, "tenant-a", "default")
	require.NoError(t, err)
	s2, err := reg.Store(ctx, "tenant-a", "default")
	require.NoError(t, err)
	require.Same(t, s1, s2)

	s3, err := reg.Store(ctx, "tenant-a", "other")
	require.NoError(t, err)
	require.NotSame(t, s1, s3)
}

func TestCheckMemoryLimitBlocksAtTierCeiling(t *testing.T) {
	ctx := context.Background()
	reg := New(t.TempDir(), "sqlite", "sqlite", 8, func(string) string { return "free" }, nil)
	reg.tierOf = func(string) string { return "free" }
	// Shadow Free with a tiny ceiling for this test via a local override.
	savedFree := Free
	Free.MaxMemories = 1
	tiers["free"] = Free
	defer func() {
		Free = savedFree
		tiers["free"] = savedFree
	}()

	st, err := reg.Store(ctx, "tenant-a", "default")
	require.NoError(t, err)

	require.NoError(t, reg.CheckMemoryLimit(ctx, st, "tenant-a", "default"))

	_, _, err = st.Store(ctx, model.Memory{Content: "first", MemoryType: model.TypeFact, Importance: 5, Namespace: "default"})
	require.NoError(t, err)

	err = reg.CheckMemoryLimit(ctx, st, "tenant-a", "default")
	require.Error(t, err)
	var quotaErr storereg.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	require.Equal(t, "max_memories", quotaErr.Quota)
}

func TestCheckNamespaceLimitAllowsExistingNamespace(t *testing.T) {
	ctx := context.Background()
	reg := New(t.TempDir(), "sqlite", "sqlite", 8, nil, nil)
	savedFree := Free
	Free.MaxNamespaces = 1
	tiers["free"] = Free
	defer func() {
		Free = savedFree
		tiers["free"] = savedFree
	}()

	st, err := reg.Store(ctx, "tenant-a", "default")
	require.NoError(t, err)
	_, _, err = st.Store(ctx, model.Memory{Content: "first", MemoryType: model.TypeFact, Importance: 5, Namespace: "default"})
	require.NoError(t, err)

	require.NoError(t, reg.CheckNamespaceLimit(ctx, st, "tenant-a", "default"))

	err = reg.CheckNamespaceLimit(ctx, st, "tenant-a", "scratch")
	require.Error(t, err)
	var quotaErr storereg.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	require.Equal(t, "max_namespaces", quotaErr.Quota)
}

func TestCheckFeatureGatesByTier(t *testing.T) {
	reg := New(t.TempDir(), "sqlite", "sqlite", 8, func(string) string { return "free" }, nil)
	require.Error(t, reg.CheckFeature("tenant-a", "semantic_search"))
	require.NoError(t, reg.CheckFeature("tenant-a", "links"))

	reg.tierOf = func(string) string { return "pro" }
	require.NoError(t, reg.CheckFeature("tenant-a", "semantic_search"))
	require.Error(t, reg.CheckFeature("tenant-a", "synapse_proxy"))
}

func TestSessionsIsCreatedLazilyAndReused(t *testing.T) {
	ctx := context.Background()
	reg := New(t.TempDir(), "sqlite", "sqlite", 8, nil, nil)

	s1, err := reg.Sessions(ctx, "tenant-a")
	require.NoError(t, err)
	s2, err := reg.Sessions(ctx, "tenant-a")
	require.NoError(t, err)
	require.Same(t, s1, s2)
}
