// Package session defines the SessionStore contract and its plugin
// registry, following the same Loader/Plugin/Register/Names/Select
// shape as the store and embed registries.
package session

import (
	"context"
	"fmt"

	"github.com/engram-memory/engram/internal/model"
)

// CheckpointInput is the payload for SaveCheckpoint.
type CheckpointInput struct {
	Project       string
	Summary       string
	KeyFacts      []string
	OpenTasks     []string
	FilesModified []string
}

// Store manages sessions and their checkpoints.
type Store interface {
	// SaveCheckpoint gets-or-creates the active session for project (an
	// empty project means "ungrouped"), appends the next-numbered
	// checkpoint, and returns it.
	SaveCheckpoint(ctx context.Context, in CheckpointInput) (model.Checkpoint, model.Session, error)
	// LoadCheckpoint returns the most recent checkpoint, optionally
	// narrowed to a session id or project. Both empty means
	// "the most recent checkpoint overall".
	LoadCheckpoint(ctx context.Context, sessionID, project string) (model.Checkpoint, model.Session, error)
	// ListSessions returns recent sessions, optionally filtered by project.
	ListSessions(ctx context.Context, project string, limit int) ([]model.Session, error)
	Close() error
}

// Loader opens a SessionStore for the given tenant-scoped path.
type Loader func(ctx context.Context, path string) (Store, error)

// Plugin names a SessionStore backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a session store plugin. Called from each backend's init().
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered session store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named session store backend.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown session backend %q; valid: %v", name, Names())
}
