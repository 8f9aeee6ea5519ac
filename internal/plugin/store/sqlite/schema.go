package sqlite

import (
	"fmt"

	"gorm.io/gorm"
)

// memoryRow is the GORM model for the memories table. GORM owns column
// definitions for the row table; the FTS5 virtual table, its sync
// triggers, and the vec0 vector table are raw DDL below since GORM has
// no support for modeling SQLite virtual tables.
type memoryRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Content     string `gorm:"not null"`
	MemoryType  string `gorm:"column:memory_type;default:fact"`
	Importance  int    `gorm:"default:5"`
	Namespace   string `gorm:"default:default"`
	Tags        string `gorm:"default:'[]'"`    // JSON array
	Metadata    string `gorm:"default:'{}'"`    // JSON object
	ContentHash string `gorm:"column:content_hash;uniqueIndex"`
	Embedding   []byte
	DecayScore  float64    `gorm:"column:decay_score;default:1.0"`
	CreatedAt   string     `gorm:"column:created_at"`
	AccessedAt  string     `gorm:"column:accessed_at"`
	AccessCount int        `gorm:"column:access_count;default:0"`
	ExpiresAt   *string    `gorm:"column:expires_at"`
}

func (memoryRow) TableName() string { return "memories" }

// linkRow is the GORM model for memory_links.
type linkRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SourceID  int64  `gorm:"column:source_id;not null"`
	TargetID  int64  `gorm:"column:target_id;not null"`
	Relation  string `gorm:"not null;default:related"`
	Metadata  string `gorm:"default:'{}'"`
	CreatedAt string `gorm:"column:created_at"`
}

func (linkRow) TableName() string { return "memory_links" }

// migration is one step of the explicit versioned migration list that
// replaces the original's try/except-ALTER self-migration.
type migration struct {
	ID      string
	Applies func(db *gorm.DB) bool
	DDL     []string
}

const notExpiredPredicate = "(expires_at IS NULL OR expires_at > datetime('now'))"

func migrations() []migration {
	return []migration{
		{
			ID:      "0001_core_tables",
			Applies: func(db *gorm.DB) bool { return !db.Migrator().HasTable("memories") },
			DDL: []string{
				`CREATE TABLE IF NOT EXISTS memories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					content TEXT NOT NULL,
					memory_type TEXT NOT NULL DEFAULT 'fact',
					importance INTEGER DEFAULT 5,
					namespace TEXT DEFAULT 'default',
					tags TEXT DEFAULT '[]',
					metadata TEXT DEFAULT '{}',
					content_hash TEXT UNIQUE,
					embedding BLOB,
					decay_score REAL DEFAULT 1.0,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					accessed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					access_count INTEGER DEFAULT 0,
					expires_at TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_type ON memories(memory_type)`,
				`CREATE INDEX IF NOT EXISTS idx_importance ON memories(importance DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_namespace ON memories(namespace)`,
				`CREATE INDEX IF NOT EXISTS idx_hash ON memories(content_hash)`,
				`CREATE INDEX IF NOT EXISTS idx_ns_importance ON memories(namespace, importance DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_priority ON memories(importance DESC, access_count DESC, accessed_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_expires_at ON memories(expires_at)`,
			},
		},
		{
			ID:      "0002_fts5",
			Applies: func(db *gorm.DB) bool { return !db.Migrator().HasTable("memories_fts") },
			DDL: []string{
				`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
					content, tags, namespace,
					content='memories',
					content_rowid='id'
				)`,
				`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
					INSERT INTO memories_fts(rowid, content, tags, namespace)
					VALUES (new.id, new.content, new.tags, new.namespace);
				END`,
				`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
					INSERT INTO memories_fts(memories_fts, rowid, content, tags, namespace)
					VALUES ('delete', old.id, old.content, old.tags, old.namespace);
				END`,
				`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
					INSERT INTO memories_fts(memories_fts, rowid, content, tags, namespace)
					VALUES ('delete', old.id, old.content, old.tags, old.namespace);
					INSERT INTO memories_fts(rowid, content, tags, namespace)
					VALUES (new.id, new.content, new.tags, new.namespace);
				END`,
			},
		},
		{
			ID:      "0003_links",
			Applies: func(db *gorm.DB) bool { return !db.Migrator().HasTable("memory_links") },
			DDL: []string{
				`CREATE TABLE IF NOT EXISTS memory_links (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_id INTEGER NOT NULL,
					target_id INTEGER NOT NULL,
					relation TEXT NOT NULL DEFAULT 'related',
					metadata TEXT DEFAULT '{}',
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
					FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE,
					UNIQUE(source_id, target_id, relation)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_links_source ON memory_links(source_id)`,
				`CREATE INDEX IF NOT EXISTS idx_links_target ON memory_links(target_id)`,
				`CREATE INDEX IF NOT EXISTS idx_links_relation ON memory_links(relation)`,
			},
		},
		{
			ID:      "0004_sessions",
			Applies: func(db *gorm.DB) bool { return !db.Migrator().HasTable("sessions") },
			DDL: []string{
				`CREATE TABLE IF NOT EXISTS sessions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id TEXT UNIQUE NOT NULL,
					project TEXT,
					summary TEXT,
					status TEXT DEFAULT 'active',
					started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					ended_at TIMESTAMP,
					checkpoint_count INTEGER DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS checkpoints (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id TEXT NOT NULL,
					checkpoint_num INTEGER NOT NULL,
					summary TEXT NOT NULL,
					key_facts TEXT,
					open_tasks TEXT,
					files_modified TEXT,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (session_id) REFERENCES sessions(session_id)
				)`,
			},
		},
		{
			// Adding a column that already exists must be a no-op.
			// Applies guards on the column's absence instead of relying on a
			// driver-level "IF NOT EXISTS" (SQLite's ALTER TABLE has none).
			ID:      "0005_expires_at_column",
			Applies: func(db *gorm.DB) bool { return !db.Migrator().HasColumn(&memoryRow{}, "expires_at") },
			DDL:     []string{`ALTER TABLE memories ADD COLUMN expires_at TIMESTAMP`},
		},
	}
}

// vecTableDDL builds the vec0 virtual table DDL for the configured embedding
// dimension. vec0 performs an exact brute-force scan with no index configured,
// matching the non-goal of approximate nearest-neighbor search.
func vecTableDDL(dimension int) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS memories_vec USING vec0(
		memory_id INTEGER PRIMARY KEY,
		embedding float[%d] distance_metric=cosine
	)`, dimension)
}

// runMigrations applies every migration whose Applies predicate is true, in order.
func runMigrations(db *gorm.DB) error {
	for _, m := range migrations() {
		if !m.Applies(db) {
			continue
		}
		for _, stmt := range m.DDL {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
