package memories

import (
	"fmt"
	"strings"
	"time"

	"github.com/engram-memory/engram/internal/model"
)

func nowPlusSeconds(seconds int) time.Time {
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

func renderMarkdown(memories []model.Memory) string {
	var b strings.Builder
	b.WriteString("# Exported Memories\n\n")
	for _, m := range memories {
		fmt.Fprintf(&b, "## [%s] %s (importance %d)\n\n%s\n\n", m.MemoryType, m.CreatedAt.Format(time.RFC3339), m.Importance, m.Content)
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(m.Tags, ", "))
		}
	}
	return b.String()
}
