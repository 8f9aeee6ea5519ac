// Package local implements a dependency-free, deterministic Embedder:
// hashed-bag-of-tokens with L2 normalization. It trades semantic quality
// for zero external model dependency, generalized to a configurable
// dimension: EmbedDimension flows from config rather than being fixed
// at 384.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	registryembed "github.com/engram-memory/engram/internal/registry/embed"
)

const modelName = "hashed-bow-l2"

func init() {
	registryembed.Register(registryembed.Plugin{
		Name: "local",
		Loader: func(_ context.Context, dimension int) (registryembed.Embedder, error) {
			if dimension <= 0 {
				dimension = 384
			}
			return &Embedder{dimension: dimension}, nil
		},
	})
}

// Embedder is the hashed-bag-of-tokens implementation.
type Embedder struct {
	dimension int
}

func (e *Embedder) ModelName() string { return modelName }
func (e *Embedder) Dimension() int    { return e.dimension }

func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = e.embedOne(text)
	}
	return results, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vector := make([]float32, e.dimension)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		i := int(h.Sum64() % uint64(e.dimension))
		vector[i] += 1
	}
	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return vector
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	for i := range vector {
		vector[i] *= inv
	}
	return vector
}

func tokenize(text string) []string {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
}

var _ registryembed.Embedder = (*Embedder)(nil)
