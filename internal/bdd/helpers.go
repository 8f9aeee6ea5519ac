package bdd

import (
	"fmt"
	"sync/atomic"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/engram-memory/engram/internal/model"
)

var memoryFixtureSeq int64

// memoryFixture returns a throwaway memory with unique content, used by
// steps that only need "some memory" to exist rather than a specific
// labeled one (e.g. driving autosave's delta tracking).
func memoryFixture() model.Memory {
	n := atomic.AddInt64(&memoryFixtureSeq, 1)
	return model.Memory{
		Content:    fmt.Sprintf("autosave fixture memory #%d", n),
		MemoryType: model.TypeFact,
		Importance: 5,
		Namespace:  "default",
	}
}

// lineDiff renders a unified diff between expected and actual line sets,
// used to turn a bare count mismatch into something a scenario failure can
// actually show the shape of.
func lineDiff(expected, actual []string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        expected,
		B:        actual,
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("(diff unavailable: %v)", err)
	}
	return diff
}
