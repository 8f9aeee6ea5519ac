// Package model holds the core persisted types shared by the Store,
// LinkGraph, SessionStore, and AutoSave components.
package model

import "time"

// MemoryType is a closed variant over the kinds of memory a tenant can
// store. Parsing at the adapter boundary rejects unknown values with
// invalid_input.
type MemoryType string

const (
	TypeFact       MemoryType = "fact"
	TypePreference MemoryType = "preference"
	TypeDecision   MemoryType = "decision"
	TypeErrorFix   MemoryType = "error_fix"
	TypePattern    MemoryType = "pattern"
	TypeWorkflow   MemoryType = "workflow"
	TypeSummary    MemoryType = "summary"
	TypeCustom     MemoryType = "custom"
)

// ValidMemoryTypes lists every closed-variant value, in declaration order.
var ValidMemoryTypes = []MemoryType{
	TypeFact, TypePreference, TypeDecision, TypeErrorFix,
	TypePattern, TypeWorkflow, TypeSummary, TypeCustom,
}

// Valid reports whether t is one of the closed-variant values.
func (t MemoryType) Valid() bool {
	for _, v := range ValidMemoryTypes {
		if t == v {
			return true
		}
	}
	return false
}

// MatchType tags how a search result was produced.
type MatchType string

const (
	MatchFTS      MatchType = "fts"
	MatchLike     MatchType = "like"
	MatchSemantic MatchType = "semantic"
)

// Memory is the atomic content-addressed unit of the store.
type Memory struct {
	ID          int64
	Content     string
	ContentHash string
	MemoryType  MemoryType
	Importance  int
	Namespace   string
	Tags        []string
	Metadata    map[string]any
	Embedding   []float32
	DecayScore  float64
	CreatedAt   time.Time
	AccessedAt  time.Time
	AccessCount int
	ExpiresAt   *time.Time
}

// Expired reports whether the memory is logically deleted for reads as of now.
func (m Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// SearchResult pairs a Memory with its retrieval score and match provenance.
type SearchResult struct {
	Memory    Memory
	Score     float64
	MatchType MatchType
}

// ListFilter narrows Store.List.
type ListFilter struct {
	Namespace     string
	MemoryType    MemoryType
	MinImportance int
	Limit         int
	Offset        int
}

// Stats summarizes a tenant (or tenant+namespace) store.
type Stats struct {
	TotalMemories      int
	ByType             map[MemoryType]int
	AverageImportance  float64
	WithEmbeddingCount int
	StorageBytes       int64
}

// Analytics is the aggregation backing /v1/analytics.
type Analytics struct {
	TotalMemories    int
	GrowthByDay      map[string]int
	TopTags          map[string]int
	NamespaceCounts  map[string]int
	TypeDistribution map[MemoryType]int
}
