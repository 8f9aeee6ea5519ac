// Package store defines the Store contract and the LinkGraph contract
// (implemented within Store), plus the plugin registry used to select a
// persistence backend at startup, following the same
// Loader/Plugin/Register/Names/Select convention as registry/{embed,cache}.
package store

import (
	"context"
	"fmt"

	"github.com/engram-memory/engram/internal/model"
)

// UpdateFields is a field-level patch for Store.Update. A nil pointer means
// "leave unchanged"; a non-nil pointer (including to a zero value) applies.
type UpdateFields struct {
	Content    *string
	MemoryType *model.MemoryType
	Importance *int
	Namespace  *string
	Tags       []string
	TagsSet    bool
	Metadata   map[string]any
	MetaSet    bool
	DecayScore *float64
}

// Store is tenant-local persistence plus the link graph over it.
type Store interface {
	// Insert mints a new id; content_hash is computed by the caller's
	// layer or here. Store dedups on content_hash.
	Store(ctx context.Context, m model.Memory) (id int64, duplicate bool, err error)
	Get(ctx context.Context, id int64) (model.Memory, error)
	Update(ctx context.Context, id int64, patch UpdateFields) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter model.ListFilter) ([]model.Memory, error)
	SearchText(ctx context.Context, query, namespace string, limit int) ([]model.SearchResult, error)
	SearchVector(ctx context.Context, vector []float32, namespace string, limit int) ([]model.SearchResult, error)
	GetPriority(ctx context.Context, namespace string, limit, minImportance int) ([]model.Memory, error)
	Stats(ctx context.Context, namespace string) (model.Stats, error)
	Analytics(ctx context.Context, namespace string) (model.Analytics, error)
	Decay(ctx context.Context, id int64) (float64, error)
	CleanupExpired(ctx context.Context, namespace string) (int, error)
	Prune(ctx context.Context, days int, minImportance int, namespace string) (int, error)
	ListWithoutEmbeddings(ctx context.Context, namespace string, limit int) ([]model.Memory, error)
	UpdateEmbedding(ctx context.Context, id int64, vector []float32) error

	// LinkGraph.
	Link(ctx context.Context, source, target int64, relation model.LinkRelation, metadata map[string]any) (id int64, duplicate bool, err error)
	Unlink(ctx context.Context, linkID int64) (bool, error)
	Links(ctx context.Context, memoryID int64, direction model.Direction, relation model.LinkRelation) ([]model.LinkedMemory, error)
	Graph(ctx context.Context, root int64, maxDepth int, relation model.LinkRelation) (model.Graph, error)

	// Close releases the underlying database handle.
	Close() error
}

// Loader opens a Store for the given tenant-scoped path.
type Loader func(ctx context.Context, path string, embedDimension int) (Store, error)

// Plugin names a Store backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from each backend's init().
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store backend.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store backend %q; valid: %v", name, Names())
}
