package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	sessionreg "github.com/engram-memory/engram/internal/registry/session"
)

func TestSaveCheckpointCreatesSessionAndIncrementsNumber(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	cp1, sess1, err := st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "engram", Summary: "first"})
	require.NoError(t, err)
	require.Equal(t, 1, cp1.CheckpointNum)
	require.Equal(t, "engram", sess1.Project)

	cp2, _, err := st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "engram", Summary: "second"})
	require.NoError(t, err)
	require.Equal(t, 2, cp2.CheckpointNum)
	require.Equal(t, cp1.SessionID, cp2.SessionID)
}

func TestSaveCheckpointSeparatesProjectsExactly(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	cpA, _, err := st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "alpha", Summary: "a"})
	require.NoError(t, err)
	cpB, _, err := st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "beta", Summary: "b"})
	require.NoError(t, err)

	require.NotEqual(t, cpA.SessionID, cpB.SessionID)
}

func TestLoadCheckpointReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, _, err = st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "engram", Summary: "first"})
	require.NoError(t, err)
	_, _, err = st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "engram", Summary: "second"})
	require.NoError(t, err)

	cp, _, err := st.LoadCheckpoint(ctx, "", "engram")
	require.NoError(t, err)
	require.Equal(t, "second", cp.Summary)
}

func TestListSessionsFiltersByProject(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, _, err = st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "alpha"})
	require.NoError(t, err)
	_, _, err = st.SaveCheckpoint(ctx, sessionreg.CheckpointInput{Project: "beta"})
	require.NoError(t, err)

	sessions, err := st.ListSessions(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "alpha", sessions[0].Project)
}
