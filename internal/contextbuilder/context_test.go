package contextbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/model"
	embedreg "github.com/engram-memory/engram/internal/registry/embed"
	_ "github.com/engram-memory/engram/internal/plugin/embed/local"
	"github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

func TestBuildPacksWithinTokenBudget(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:", 8)
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < 5; i++ {
		_, _, err := st.Store(ctx, model.Memory{
			Content:    "the user prefers dark mode across every editor and terminal",
			Importance: 8,
			Namespace:  "default",
		})
		require.NoError(t, err)
		// vary content slightly so each row is distinct and dedup doesn't collapse them
		_, _, err = st.Store(ctx, model.Memory{
			Content:    "unrelated fact number " + string(rune('a'+i)),
			Importance: 2,
			Namespace:  "default",
		})
		require.NoError(t, err)
	}

	result, err := Build(ctx, st, nil, "dark mode", Options{MaxTokens: 50, Namespace: "default"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Context)
	require.Greater(t, result.MemoriesUsed, 0)
	require.LessOrEqual(t, result.TokenCount, 60) // small slack for header-token estimate
}

func TestBuildReturnsEmptyResultWithNoCandidates(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:", 8)
	require.NoError(t, err)
	defer st.Close()

	result, err := Build(ctx, st, nil, "anything", Options{Namespace: "default"})
	require.NoError(t, err)
	require.Equal(t, 0, result.MemoriesUsed)
	require.Empty(t, result.Context)
}

func TestBuildUsesSemanticSearchWhenEmbedderProvided(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:", 384)
	require.NoError(t, err)
	defer st.Close()

	loader, err := embedreg.Select("local")
	require.NoError(t, err)
	embedder, err := loader(ctx, 384)
	require.NoError(t, err)

	vecs, err := embedder.EmbedTexts(ctx, []string{"likes tea in the afternoon"})
	require.NoError(t, err)

	_, _, err = st.Store(ctx, model.Memory{
		Content:    "likes tea in the afternoon",
		Importance: 5,
		Namespace:  "default",
		Embedding:  vecs[0],
	})
	require.NoError(t, err)

	result, err := Build(ctx, st, embedder, "tea", Options{Namespace: "default"})
	require.NoError(t, err)
	require.Greater(t, result.MemoriesUsed, 0)
}
