// Package none implements the no-embedding Embedder registered as "none".
// It deviates from a plugin/embed/disabled/disabled.go style that errors
// on every call: here EmbedTexts returns a slice of nil vectors rather
// than failing. The serve and mcp commands do not load it: with an embed
// type of "none" they run with no Embedder at all, and their callers
// skip embedding when the Embedder is nil.
package none

import (
	"context"

	"github.com/engram-memory/engram/internal/registry/embed"
)

func init() {
	embed.Register(embed.Plugin{
		Name: "none",
		Loader: func(_ context.Context, _ int) (embed.Embedder, error) {
			return &Embedder{}, nil
		},
	})
}

// Embedder is the no-op implementation registered as "none".
type Embedder struct{}

func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (e *Embedder) ModelName() string { return "none" }
func (e *Embedder) Dimension() int    { return 0 }

var _ embed.Embedder = (*Embedder)(nil)
