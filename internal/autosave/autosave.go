// Package autosave implements trigger-based incremental checkpointing on
// top of a SessionStore, grounded on
// original_source/src/engram/autosave.py's AutoSave/Delta/AutoSaveConfig.
package autosave

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/engram-memory/engram/internal/model"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
)

// Config holds the tunable trigger thresholds.
type Config struct {
	Enabled           bool
	IntervalSeconds   int
	MessageThreshold  int
	RAMThresholdPct   float64
	OnSessionEnd      bool
}

// DefaultConfig mirrors the original's AutoSaveConfig defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		IntervalSeconds:  1800,
		MessageThreshold: 500,
		RAMThresholdPct:  85.0,
		OnSessionEnd:     true,
	}
}

// Delta tracks changes accumulated since the last checkpoint.
type Delta struct {
	StoredIDs  []int64
	UpdatedIDs []int64
	DeletedIDs []int64
	LinkIDs    []int64
}

// TotalChanges is the sum of every tracked id across all four buckets.
func (d Delta) TotalChanges() int {
	return len(d.StoredIDs) + len(d.UpdatedIDs) + len(d.DeletedIDs) + len(d.LinkIDs)
}

// IsEmpty reports whether no changes have been tracked.
func (d Delta) IsEmpty() bool { return d.TotalChanges() == 0 }

func (d *Delta) reset() {
	d.StoredIDs = nil
	d.UpdatedIDs = nil
	d.DeletedIDs = nil
	d.LinkIDs = nil
}

// CheckpointResult is the outcome of a successful AutoSave checkpoint.
type CheckpointResult struct {
	Checkpoint model.Checkpoint
	Session    model.Session
	Reason     string
	Delta      Delta
}

// Status reports the current AutoSave state.
type Status struct {
	Enabled               bool
	Config                Config
	Delta                 Delta
	MessageCount          int
	SecondsSinceLastSave  float64
	TotalCheckpoints      int
	LastTrigger           string
	Project               string
}

// AutoSave wraps a SessionStore with delta tracking and trigger evaluation.
// One instance is scoped to one (tenant, project) pair; callers hold it for
// the lifetime of an agent session.
type AutoSave struct {
	mu sync.Mutex

	sessions         sessionreg.Store
	project          string
	config           Config
	delta            Delta
	messageCount     int
	lastSaveAt       time.Time
	totalCheckpoints int
	lastTrigger      string
}

// New creates an AutoSave bound to sessions for the given project.
func New(sessions sessionreg.Store, project string) *AutoSave {
	return &AutoSave{
		sessions:   sessions,
		project:    project,
		config:     DefaultConfig(),
		lastSaveAt: time.Now(),
	}
}

// Configure merges the given fields into the current config. Only fields
// present in updates are applied, as a partial update.
func (a *AutoSave) Configure(updates Config, set map[string]bool) Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	if set["enabled"] {
		a.config.Enabled = updates.Enabled
	}
	if set["interval_seconds"] {
		a.config.IntervalSeconds = updates.IntervalSeconds
	}
	if set["message_threshold"] {
		a.config.MessageThreshold = updates.MessageThreshold
	}
	if set["ram_threshold_pct"] {
		a.config.RAMThresholdPct = updates.RAMThresholdPct
	}
	if set["on_session_end"] {
		a.config.OnSessionEnd = updates.OnSessionEnd
	}
	return a.config
}

func (a *AutoSave) TrackStore(id int64)  { a.mu.Lock(); a.delta.StoredIDs = append(a.delta.StoredIDs, id); a.mu.Unlock() }
func (a *AutoSave) TrackUpdate(id int64) { a.mu.Lock(); a.delta.UpdatedIDs = append(a.delta.UpdatedIDs, id); a.mu.Unlock() }
func (a *AutoSave) TrackDelete(id int64) { a.mu.Lock(); a.delta.DeletedIDs = append(a.delta.DeletedIDs, id); a.mu.Unlock() }
func (a *AutoSave) TrackLink(id int64)   { a.mu.Lock(); a.delta.LinkIDs = append(a.delta.LinkIDs, id); a.mu.Unlock() }
func (a *AutoSave) TrackMessage()        { a.mu.Lock(); a.messageCount++; a.mu.Unlock() }

// ShouldSave evaluates triggers in priority order: RAM emergency, message
// count, timer. Returns the reason to save, or "" if none fired.
func (a *AutoSave) ShouldSave(ramPct *float64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shouldSaveLocked(ramPct)
}

func (a *AutoSave) shouldSaveLocked(ramPct *float64) string {
	if !a.config.Enabled {
		return ""
	}
	if a.delta.IsEmpty() && a.messageCount == 0 {
		return ""
	}
	if ramPct != nil && *ramPct >= a.config.RAMThresholdPct {
		return "ram_threshold"
	}
	if a.messageCount >= a.config.MessageThreshold {
		return "message_threshold"
	}
	if time.Since(a.lastSaveAt).Seconds() >= float64(a.config.IntervalSeconds) {
		return "timer"
	}
	return ""
}

// Tick records a message exchange and checkpoints if a trigger fires.
func (a *AutoSave) Tick(ctx context.Context, ramPct *float64) (*CheckpointResult, error) {
	a.mu.Lock()
	a.messageCount++
	reason := a.shouldSaveLocked(ramPct)
	a.mu.Unlock()

	if reason == "" {
		return nil, nil
	}
	result, err := a.Checkpoint(ctx, reason)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Checkpoint saves an incremental checkpoint describing the current delta,
// then resets all counters.
func (a *AutoSave) Checkpoint(ctx context.Context, reason string) (CheckpointResult, error) {
	if reason == "" {
		reason = "manual"
	}

	a.mu.Lock()
	delta := a.delta
	messageCount := a.messageCount
	a.mu.Unlock()

	var summary string
	if delta.IsEmpty() {
		summary = fmt.Sprintf("[autosave:%s] no changes", reason)
	} else {
		var parts []string
		if len(delta.StoredIDs) > 0 {
			parts = append(parts, fmt.Sprintf("%d new memories", len(delta.StoredIDs)))
		}
		if len(delta.UpdatedIDs) > 0 {
			parts = append(parts, fmt.Sprintf("%d updated", len(delta.UpdatedIDs)))
		}
		if len(delta.DeletedIDs) > 0 {
			parts = append(parts, fmt.Sprintf("%d deleted", len(delta.DeletedIDs)))
		}
		if len(delta.LinkIDs) > 0 {
			parts = append(parts, fmt.Sprintf("%d new links", len(delta.LinkIDs)))
		}
		summary = fmt.Sprintf("[autosave:%s] %s (msgs: %d)", reason, strings.Join(parts, ", "), messageCount)
	}

	checkpoint, sess, err := a.sessions.SaveCheckpoint(ctx, sessionreg.CheckpointInput{
		Project: a.project,
		Summary: summary,
		KeyFacts: []string{
			fmt.Sprintf("trigger: %s", reason),
			fmt.Sprintf("delta: stored=%d updated=%d deleted=%d links=%d",
				len(delta.StoredIDs), len(delta.UpdatedIDs), len(delta.DeletedIDs), len(delta.LinkIDs)),
			fmt.Sprintf("messages_since_last_save: %d", messageCount),
		},
	})
	if err != nil {
		return CheckpointResult{}, err
	}

	a.mu.Lock()
	a.delta.reset()
	a.messageCount = 0
	a.lastSaveAt = time.Now()
	a.totalCheckpoints++
	a.lastTrigger = reason
	a.mu.Unlock()

	return CheckpointResult{Checkpoint: checkpoint, Session: sess, Reason: reason, Delta: delta}, nil
}

// Restore loads the latest checkpoint for an explicit sessionID, or for
// this AutoSave's project if sessionID is empty. The original's restore()
// accepts an integer checkpoint_id and passes str(checkpoint_id) as a
// session_id lookup key, which can never match a real session_id (those
// are formatted "session_<timestamp>_<suffix>") — effectively always
// falling through to "nothing found" whenever a specific checkpoint was
// requested. This takes a real session id instead of a numeric checkpoint
// id, so a targeted restore actually works.
func (a *AutoSave) Restore(ctx context.Context, sessionID string) (model.Checkpoint, model.Session, error) {
	if sessionID != "" {
		return a.sessions.LoadCheckpoint(ctx, sessionID, "")
	}
	return a.sessions.LoadCheckpoint(ctx, "", a.project)
}

// Status reports the current trigger state for diagnostics.
func (a *AutoSave) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Enabled:              a.config.Enabled,
		Config:               a.config,
		Delta:                a.delta,
		MessageCount:         a.messageCount,
		SecondsSinceLastSave: time.Since(a.lastSaveAt).Seconds(),
		TotalCheckpoints:     a.totalCheckpoints,
		LastTrigger:          a.lastTrigger,
		Project:              a.project,
	}
}
