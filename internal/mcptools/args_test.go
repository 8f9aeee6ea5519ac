package mcptools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgHelpersDefaultWhenAbsent(t *testing.T) {
	args := map[string]any{}
	require.Equal(t, "default", argNamespace(args))
	require.Equal(t, 7, argInt(args, "min_importance", 7))
	require.Equal(t, 85.0, argFloat(args, "ram_threshold_pct", 85.0))
	require.False(t, argBool(args, "enabled", false))
	require.Nil(t, argStringSlice(args, "tags"))
}

func TestArgHelpersReadJSONDecodedValues(t *testing.T) {
	args := map[string]any{
		"namespace":      "project-x",
		"limit":          float64(20), // JSON numbers decode as float64
		"ram_threshold":  float64(91.5),
		"enabled":        true,
		"tags":           []any{"bug", "urgent"},
		"min_importance": float64(3),
	}
	require.Equal(t, "project-x", argNamespace(args))
	require.Equal(t, 20, argInt(args, "limit", 0))
	require.Equal(t, 91.5, argFloat(args, "ram_threshold", 0))
	require.True(t, argBool(args, "enabled", false))
	require.Equal(t, []string{"bug", "urgent"}, argStringSlice(args, "tags"))
	require.Equal(t, 3, argInt(args, "min_importance", 0))
}

func TestArgStringSliceIgnoresNonStringElements(t *testing.T) {
	args := map[string]any{"tags": []any{"ok", 5, "also-ok"}}
	require.Equal(t, []string{"ok", "also-ok"}, argStringSlice(args, "tags"))
}
