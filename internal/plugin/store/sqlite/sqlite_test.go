package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
)

func openTestDB(t *testing.T) storereg.Store {
	t.Helper()
	st, err := Open(context.Background(), ":memory:", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreDedupesOnContentHash(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	id1, dup1, err := st.Store(ctx, model.Memory{Content: "the sky is blue", Importance: 3, Namespace: "default"})
	require.NoError(t, err)
	require.False(t, dup1)

	id2, dup2, err := st.Store(ctx, model.Memory{Content: "the sky is blue", Importance: 7, Namespace: "default"})
	require.NoError(t, err)
	require.True(t, dup2)
	require.Equal(t, id1, id2)

	got, err := st.Get(ctx, id1)
	require.NoError(t, err)
	require.Equal(t, 7, got.Importance)
	require.GreaterOrEqual(t, got.AccessCount, 1)
}

func TestGetMarksExpiredAsNotFound(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	id, _, err := st.Store(ctx, model.Memory{Content: "stale fact", Namespace: "default", ExpiresAt: &past})
	require.NoError(t, err)

	_, err = st.Get(ctx, id)
	require.Error(t, err)
	var nf storereg.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSearchTextFindsByWord(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	_, _, err := st.Store(ctx, model.Memory{Content: "prefers dark mode in the editor", Namespace: "default", Importance: 5})
	require.NoError(t, err)
	_, _, err = st.Store(ctx, model.Memory{Content: "unrelated note about lunch", Namespace: "default", Importance: 5})
	require.NoError(t, err)

	results, err := st.SearchText(ctx, "dark mode", "default", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, model.MatchFTS, results[0].MatchType)
}

func TestSearchVectorScoresByCosine(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	id1, _, err := st.Store(ctx, model.Memory{Content: "vector one", Namespace: "default", Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}})
	require.NoError(t, err)
	_, _, err = st.Store(ctx, model.Memory{Content: "vector two", Namespace: "default", Embedding: []float32{0, 1, 0, 0, 0, 0, 0, 0}})
	require.NoError(t, err)

	results, err := st.SearchVector(ctx, []float32{1, 0, 0, 0, 0, 0, 0, 0}, "default", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, id1, results[0].Memory.ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestGetPriorityWidensToDefaultNamespace(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	_, _, err := st.Store(ctx, model.Memory{Content: "global default fact", Namespace: "default", Importance: 9})
	require.NoError(t, err)
	_, _, err = st.Store(ctx, model.Memory{Content: "tenant specific fact", Namespace: "acme", Importance: 9})
	require.NoError(t, err)

	results, err := st.GetPriority(ctx, "acme", 10, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestLinkDistinguishesNotFoundFromDuplicate(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	a, _, _ := st.Store(ctx, model.Memory{Content: "a", Namespace: "default", Importance: 5})
	b, _, _ := st.Store(ctx, model.Memory{Content: "b", Namespace: "default", Importance: 5})

	_, _, err := st.Link(ctx, a, 999999, model.RelRelated, nil)
	require.Error(t, err)
	var nf storereg.NotFoundError
	require.ErrorAs(t, err, &nf)

	id1, dup1, err := st.Link(ctx, a, b, model.RelRelated, nil)
	require.NoError(t, err)
	require.False(t, dup1)

	id2, dup2, err := st.Link(ctx, a, b, model.RelRelated, nil)
	require.NoError(t, err)
	require.True(t, dup2)
	require.Equal(t, id1, id2)
}

func TestGraphBFSRespectsMaxDepthAndDedupesEdges(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	a, _, _ := st.Store(ctx, model.Memory{Content: "a", Namespace: "default", Importance: 5})
	b, _, _ := st.Store(ctx, model.Memory{Content: "b", Namespace: "default", Importance: 5})
	c, _, _ := st.Store(ctx, model.Memory{Content: "c", Namespace: "default", Importance: 5})

	_, _, err := st.Link(ctx, a, b, model.RelRelated, nil)
	require.NoError(t, err)
	_, _, err = st.Link(ctx, b, c, model.RelRelated, nil)
	require.NoError(t, err)

	g, err := st.Graph(ctx, a, 1, "")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2) // a and b only, c is at depth 2
	require.Len(t, g.Edges, 1)
}
