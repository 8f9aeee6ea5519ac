package mcptools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/model"
)

func TestFormatRecoveryIncludesAllSections(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cp := model.Checkpoint{
		CheckpointNum: 4,
		Summary:       "Finished the ingest pipeline rewrite",
		KeyFacts:      []string{"switched to FTS5", "dropped the old indexer"},
		OpenTasks:     []string{"backfill embeddings"},
		FilesModified: []string{"internal/plugin/store/sqlite/memories.go"},
		CreatedAt:     created,
	}
	sess := model.Session{Project: "engram"}

	out := formatRecovery(cp, sess)

	require.Contains(t, out, "## Session Recovery")
	require.Contains(t, out, "**Project:** engram")
	require.Contains(t, out, "**Checkpoint #4**")
	require.Contains(t, out, "Finished the ingest pipeline rewrite")
	require.Contains(t, out, "- switched to FTS5")
	require.Contains(t, out, "- [ ] backfill embeddings")
	require.Contains(t, out, "- internal/plugin/store/sqlite/memories.go")
}

func TestFormatRecoveryDefaultsProjectToGeneral(t *testing.T) {
	cp := model.Checkpoint{CheckpointNum: 1, Summary: "first run", CreatedAt: time.Now()}
	out := formatRecovery(cp, model.Session{})
	require.Contains(t, out, "**Project:** General")
}
