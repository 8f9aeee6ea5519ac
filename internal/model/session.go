package model

import "time"

// SessionStatus is the closed variant of Session.Status.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session groups an ordered sequence of Checkpoints for one (tenant, project)
// window. Project is optional; the empty string means "ungrouped".
type Session struct {
	ID               string
	Project          string
	Summary          string
	Status           SessionStatus
	StartedAt        time.Time
	EndedAt          *time.Time
	CheckpointCount  int
}

// Checkpoint is an immutable, numbered snapshot of session state.
type Checkpoint struct {
	ID             int64
	SessionID      string
	CheckpointNum  int
	Summary        string
	KeyFacts       []string
	OpenTasks      []string
	FilesModified  []string
	CreatedAt      time.Time
}
