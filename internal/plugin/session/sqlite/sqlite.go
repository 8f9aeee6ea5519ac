// Package sqlite implements the SessionStore contract over a SQLite file,
// grounded on original_source/src/engram/sessions.py's SessionManager.
package sqlite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
	sessionreg "github.com/engram-memory/engram/internal/registry/session"
)

func init() {
	sessionreg.Register(sessionreg.Plugin{Name: "sqlite", Loader: Open})
}

const timeLayout = "2006-01-02 15:04:05"

type sessionRow struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"column:session_id;uniqueIndex"`
	Project         string
	Summary         string
	Status          string `gorm:"default:active"`
	StartedAt       string `gorm:"column:started_at"`
	EndedAt         *string `gorm:"column:ended_at"`
	CheckpointCount int    `gorm:"column:checkpoint_count;default:0"`
}

func (sessionRow) TableName() string { return "sessions" }

type checkpointRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	SessionID     string `gorm:"column:session_id"`
	CheckpointNum int    `gorm:"column:checkpoint_num"`
	Summary       string
	KeyFacts      string `gorm:"column:key_facts;default:'[]'"`
	OpenTasks     string `gorm:"column:open_tasks;default:'[]'"`
	FilesModified string `gorm:"column:files_modified;default:'[]'"`
	CreatedAt     string `gorm:"column:created_at"`
}

func (checkpointRow) TableName() string { return "checkpoints" }

// DB implements sessionreg.Store over one tenant-scoped SQLite file.
type DB struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open opens or creates the tenant's session database at path.
func Open(ctx context.Context, path string) (sessionreg.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := gdb.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT UNIQUE NOT NULL,
		project TEXT,
		summary TEXT,
		status TEXT DEFAULT 'active',
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		ended_at TIMESTAMP,
		checkpoint_count INTEGER DEFAULT 0
	)`).Error; err != nil {
		return nil, err
	}
	if err := gdb.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		checkpoint_num INTEGER NOT NULL,
		summary TEXT NOT NULL,
		key_facts TEXT,
		open_tasks TEXT,
		files_modified TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	)`).Error; err != nil {
		return nil, err
	}
	return &DB{gorm: gdb}, nil
}

func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func generateSessionID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	sum := sha256.Sum256(buf[:])
	return fmt.Sprintf("session_%s_%s", ts, hex.EncodeToString(sum[:])[:6])
}

// getOrCreateSession finds the most recently started active session for
// project, or mints a new one. Unlike the original's
// "WHERE project = ? OR project IS NULL" (which silently widens every
// lookup to also match ungrouped sessions), this matches project exactly —
// a deliberate deviation, since the widening in the original looks like
// an accidental consequence of passing bound parameters rather than an
// intended behavior.
func (db *DB) getOrCreateSession(tx *gorm.DB, project string) (string, error) {
	var row sessionRow
	q := tx.Where("status = 'active'")
	if project == "" {
		q = q.Where("project IS NULL OR project = ''")
	} else {
		q = q.Where("project = ?", project)
	}
	err := q.Order("started_at DESC").Take(&row).Error
	if err == nil {
		return row.SessionID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	sessionID := generateSessionID()
	newRow := sessionRow{
		SessionID: sessionID,
		Project:   project,
		Status:    "active",
		StartedAt: time.Now().UTC().Format(timeLayout),
	}
	if err := tx.Create(&newRow).Error; err != nil {
		return "", err
	}
	return sessionID, nil
}

// SaveCheckpoint appends the next-numbered checkpoint to the active session
// for project, creating that session if none is active.
func (db *DB) SaveCheckpoint(ctx context.Context, in sessionreg.CheckpointInput) (model.Checkpoint, model.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var checkpoint model.Checkpoint
	var sess model.Session

	err := db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionID, err := db.getOrCreateSession(tx, in.Project)
		if err != nil {
			return err
		}

		var maxNum int
		tx.Model(&checkpointRow{}).Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(checkpoint_num), 0)").Scan(&maxNum)
		num := maxNum + 1

		keyFacts, _ := json.Marshal(orEmpty(in.KeyFacts))
		openTasks, _ := json.Marshal(orEmpty(in.OpenTasks))
		filesModified, _ := json.Marshal(orEmpty(in.FilesModified))

		row := checkpointRow{
			SessionID:     sessionID,
			CheckpointNum: num,
			Summary:       in.Summary,
			KeyFacts:      string(keyFacts),
			OpenTasks:     string(openTasks),
			FilesModified: string(filesModified),
			CreatedAt:     time.Now().UTC().Format(timeLayout),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if err := tx.Model(&sessionRow{}).Where("session_id = ?", sessionID).
			Updates(map[string]any{"checkpoint_count": num, "summary": in.Summary}).Error; err != nil {
			return err
		}

		var sessRow sessionRow
		if err := tx.Where("session_id = ?", sessionID).Take(&sessRow).Error; err != nil {
			return err
		}

		checkpoint = rowToCheckpoint(row, in.KeyFacts, in.OpenTasks, in.FilesModified)
		sess = rowToSession(sessRow)
		return nil
	})
	return checkpoint, sess, err
}

// LoadCheckpoint returns the most recent checkpoint, optionally narrowed
// by sessionID or project.
func (db *DB) LoadCheckpoint(ctx context.Context, sessionID, project string) (model.Checkpoint, model.Session, error) {
	q := db.gorm.WithContext(ctx).Table("checkpoints c").
		Joins("JOIN sessions s ON c.session_id = s.session_id").
		Select("c.*, s.project as s_project, s.status as s_status, s.started_at as s_started_at, s.ended_at as s_ended_at, s.checkpoint_count as s_checkpoint_count")

	switch {
	case sessionID != "":
		q = q.Where("c.session_id = ?", sessionID)
	case project != "":
		q = q.Where("s.project = ?", project)
	}

	type joined struct {
		checkpointRow
		SProject         string
		SStatus          string
		SStartedAt       string
		SEndedAt         *string
		SCheckpointCount int
	}
	var row joined
	if err := q.Order("c.created_at DESC, c.id DESC").Limit(1).Scan(&row).Error; err != nil {
		return model.Checkpoint{}, model.Session{}, err
	}
	if row.ID == 0 {
		return model.Checkpoint{}, model.Session{}, storereg.NotFoundError{Resource: "checkpoint", ID: sessionID + project}
	}

	var keyFacts, openTasks, filesModified []string
	_ = json.Unmarshal([]byte(row.KeyFacts), &keyFacts)
	_ = json.Unmarshal([]byte(row.OpenTasks), &openTasks)
	_ = json.Unmarshal([]byte(row.FilesModified), &filesModified)

	checkpoint := rowToCheckpoint(row.checkpointRow, keyFacts, openTasks, filesModified)
	sess := model.Session{
		ID:              row.SessionID,
		Project:         row.SProject,
		Summary:         row.Summary,
		Status:          model.SessionStatus(row.SStatus),
		StartedAt:       parseTime(row.SStartedAt),
		CheckpointCount: row.SCheckpointCount,
	}
	if row.SEndedAt != nil {
		t := parseTime(*row.SEndedAt)
		sess.EndedAt = &t
	}
	return checkpoint, sess, nil
}

// ListSessions returns recent sessions, optionally filtered by project.
func (db *DB) ListSessions(ctx context.Context, project string, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	q := db.gorm.WithContext(ctx)
	if project != "" {
		q = q.Where("project = ?", project)
	}
	var rows []sessionRow
	if err := q.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Session, len(rows))
	for i, r := range rows {
		out[i] = rowToSession(r)
	}
	return out, nil
}

func rowToSession(r sessionRow) model.Session {
	s := model.Session{
		ID:              r.SessionID,
		Project:         r.Project,
		Summary:         r.Summary,
		Status:          model.SessionStatus(r.Status),
		StartedAt:       parseTime(r.StartedAt),
		CheckpointCount: r.CheckpointCount,
	}
	if r.EndedAt != nil {
		t := parseTime(*r.EndedAt)
		s.EndedAt = &t
	}
	return s
}

func rowToCheckpoint(r checkpointRow, keyFacts, openTasks, filesModified []string) model.Checkpoint {
	return model.Checkpoint{
		ID:            r.ID,
		SessionID:     r.SessionID,
		CheckpointNum: r.CheckpointNum,
		Summary:       r.Summary,
		KeyFacts:      orEmpty(keyFacts),
		OpenTasks:     orEmpty(openTasks),
		FilesModified: orEmpty(filesModified),
		CreatedAt:     parseTime(r.CreatedAt),
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, timeLayout, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

var _ sessionreg.Store = (*DB)(nil)
