package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engram-memory/engram/internal/model"
)

func TestExtractSkipsShortFragments(t *testing.T) {
	out := Extract("ok. yes.", "engram")
	require.Empty(t, out)
}

func TestExtractClassifiesPreference(t *testing.T) {
	out := Extract("I always prefer tabs over spaces in this codebase.", "engram")
	require.Len(t, out, 1)
	require.Equal(t, model.TypePreference, out[0].Type)
	require.Equal(t, "engram", out[0].Project)
	require.GreaterOrEqual(t, out[0].Importance, 8)
}

func TestExtractClassifiesErrorFix(t *testing.T) {
	out := Extract("Fixed by using a mutex around the writer", "engram")
	require.Len(t, out, 1)
	require.Equal(t, model.TypeErrorFix, out[0].Type)
}

func TestExtractCapsImportanceAtTen(t *testing.T) {
	out := Extract("We always must never use global state, this is critical and important", "engram")
	require.Len(t, out, 1)
	require.LessOrEqual(t, out[0].Importance, 10)
}

func TestExtractOnlyOneCandidatePerSentence(t *testing.T) {
	out := Extract("I prefer the plan is to use tabs, decided to go with spaces instead.", "engram")
	require.Len(t, out, 1)
}

func TestExtractHandlesMultipleSentences(t *testing.T) {
	text := "I always prefer small functions. The project uses gin for routing. Fixed by using a retry loop."
	out := Extract(text, "engram")
	require.Len(t, out, 3)
}
