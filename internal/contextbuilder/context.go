// Package contextbuilder assembles a token-budgeted context block from a
// tenant's most relevant memories, grounded on
// original_source/src/engram/context.py's build_context.
package contextbuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/engram-memory/engram/internal/model"
	"github.com/engram-memory/engram/internal/registry/embed"
	"github.com/engram-memory/engram/internal/registry/store"
)

// Result is the output of Build.
type Result struct {
	Context      string
	MemoriesUsed int
	TokenCount   int
	Truncated    bool
	MemoryIDs    []int64
}

// Options narrows and budgets Build.
type Options struct {
	MaxTokens     int
	Namespace     string
	MinImportance int
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2000
	}
	if o.Namespace == "" {
		o.Namespace = "default"
	}
	if o.MinImportance == 0 {
		o.MinImportance = 3
	}
	return o
}

type candidate struct {
	memory model.Memory
	score  float64
}

// estimateTokens approximates a token count at ~4 characters/token, the
// same crude heuristic as the original (avoids a tokenizer dependency).
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

func formatEntry(m model.Memory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s|imp:%d] %s", m.MemoryType, m.Importance, m.Content)
	if len(m.Tags) > 0 {
		b.WriteString("\n  tags: ")
		b.WriteString(strings.Join(m.Tags, ", "))
	}
	return b.String()
}

// Build gathers candidates from full-text search, semantic search (when an
// embedder is configured), and the priority recall set, dedups by memory
// id keeping the highest combined score, then greedily packs the ranked
// list within MaxTokens.
func Build(ctx context.Context, st store.Store, embedder embed.Embedder, prompt string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	candidates := map[int64]candidate{}

	trimmedPrompt := strings.TrimSpace(prompt)

	if trimmedPrompt != "" {
		ftsResults, err := st.SearchText(ctx, prompt, opts.Namespace, 50)
		if err != nil {
			return Result{}, err
		}
		mergeResults(candidates, ftsResults, false)
	}

	if trimmedPrompt != "" && embedder != nil {
		vecs, err := embedder.EmbedTexts(ctx, []string{prompt})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			semResults, err := st.SearchVector(ctx, vecs[0], opts.Namespace, 50)
			if err != nil {
				return Result{}, err
			}
			mergeResults(candidates, semResults, true)
		}
	}

	priority, err := st.GetPriority(ctx, opts.Namespace, 30, opts.MinImportance)
	if err != nil {
		return Result{}, err
	}
	for _, m := range priority {
		score := float64(m.Importance) / 10.0
		if existing, ok := candidates[m.ID]; !ok || score > existing.score {
			candidates[m.ID] = candidate{memory: m, score: score}
		}
	}

	ranked := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	type selected struct {
		memory    model.Memory
		formatted string
	}
	var picked []selected
	var totalTokens, headerTokens int
	var header string

	for _, c := range ranked {
		formatted := formatEntry(c.memory)
		entryTokens := estimateTokens(formatted + "\n")
		if totalTokens+entryTokens+headerTokens > opts.MaxTokens && len(picked) > 0 {
			header = fmt.Sprintf("## Relevant Context (%d memories, ~%d tokens)\n\n", len(picked), totalTokens)
			headerTokens = estimateTokens(header)
			if totalTokens+entryTokens+headerTokens > opts.MaxTokens {
				break
			}
		}
		totalTokens += entryTokens
		picked = append(picked, selected{memory: c.memory, formatted: formatted})
	}

	if len(picked) == 0 {
		return Result{}, nil
	}

	header = fmt.Sprintf("## Relevant Context (%d memories, ~%d tokens)\n\n", len(picked), totalTokens)
	headerTokens = estimateTokens(header)

	bodies := make([]string, len(picked))
	ids := make([]int64, len(picked))
	for i, p := range picked {
		bodies[i] = p.formatted
		ids[i] = p.memory.ID
	}

	return Result{
		Context:      header + strings.Join(bodies, "\n"),
		MemoriesUsed: len(picked),
		TokenCount:   headerTokens + totalTokens,
		Truncated:    len(picked) < len(ranked),
		MemoryIDs:    ids,
	}, nil
}

// mergeResults folds search results into candidates, keeping the highest
// combined score per memory id. semantic scores are clamped to [0,1]
// directly; FTS/LIKE scores (an unbounded "rank" magnitude) are normalized
// via 1/(1+|score|) before blending 60% relevance with 40% importance —
// exactly the original's _merge_search_results weighting.
func mergeResults(candidates map[int64]candidate, results []model.SearchResult, semantic bool) {
	for _, r := range results {
		var norm float64
		if semantic {
			norm = clamp01(r.Score)
		} else {
			norm = clamp01(1.0 / (1.0 + absFloat(r.Score)))
		}
		importanceNorm := float64(r.Memory.Importance) / 10.0
		combined := 0.6*norm + 0.4*importanceNorm

		if existing, ok := candidates[r.Memory.ID]; !ok || combined > existing.score {
			candidates[r.Memory.ID] = candidate{memory: r.Memory, score: combined}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
