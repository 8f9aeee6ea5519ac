package autosave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	sessionsqlite "github.com/engram-memory/engram/internal/plugin/session/sqlite"
)

func TestTickSavesOnMessageThreshold(t *testing.T) {
	ctx := context.Background()
	sessions, err := sessionsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer sessions.Close()

	saver := New(sessions, "engram")
	saver.Configure(Config{MessageThreshold: 3}, map[string]bool{"message_threshold": true})
	saver.TrackStore(1)

	var result *CheckpointResult
	for i := 0; i < 3; i++ {
		result, err = saver.Tick(ctx, nil)
		require.NoError(t, err)
	}
	require.NotNil(t, result)
	require.Equal(t, "message_threshold", result.Reason)
	require.Contains(t, result.Checkpoint.Summary, "1 new memories")
}

func TestShouldSaveIgnoresEmptyDeltaAndNoMessages(t *testing.T) {
	ctx := context.Background()
	sessions, err := sessionsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer sessions.Close()

	saver := New(sessions, "engram")
	require.Equal(t, "", saver.ShouldSave(nil))
	_ = ctx
}

func TestRAMThresholdTakesPriorityOverMessageCount(t *testing.T) {
	ctx := context.Background()
	sessions, err := sessionsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer sessions.Close()

	saver := New(sessions, "engram")
	saver.TrackStore(1)
	ram := 90.0
	require.Equal(t, "ram_threshold", saver.ShouldSave(&ram))
}

func TestCheckpointResetsDeltaAndCounters(t *testing.T) {
	ctx := context.Background()
	sessions, err := sessionsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer sessions.Close()

	saver := New(sessions, "engram")
	saver.TrackStore(1)
	saver.TrackUpdate(2)
	_, err = saver.Checkpoint(ctx, "manual")
	require.NoError(t, err)

	status := saver.Status()
	require.True(t, status.Delta.IsEmpty())
	require.Equal(t, 1, status.TotalCheckpoints)
	require.Equal(t, "manual", status.LastTrigger)
}

func TestRestoreByExplicitSessionIDWorks(t *testing.T) {
	ctx := context.Background()
	sessions, err := sessionsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer sessions.Close()

	saver := New(sessions, "engram")
	saver.TrackStore(1)
	result, err := saver.Checkpoint(ctx, "manual")
	require.NoError(t, err)

	cp, _, err := saver.Restore(ctx, result.Checkpoint.SessionID)
	require.NoError(t, err)
	require.Equal(t, result.Checkpoint.SessionID, cp.SessionID)
}
