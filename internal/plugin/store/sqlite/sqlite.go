// Package sqlite implements the Store and LinkGraph contracts over one
// SQLite database file per tenant, grounded on the original
// engram.storage.sqlite_backend module. It is registered as the "sqlite"
// store backend via the registry's Loader/Plugin convention.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	storereg "github.com/engram-memory/engram/internal/registry/store"
)

func init() {
	sqlite_vec.Auto()
	storereg.Register(storereg.Plugin{Name: "sqlite", Loader: Open})
}

// DB implements storereg.Store over one tenant-scoped SQLite file.
//
// SQLite serializes writers; the mutex below additionally serializes the
// read-then-write sequences (store's dedup upsert, get's access-count bump)
// that would otherwise race under SQLITE_BUSY
// even with WAL mode, matching the per-tenant single-writer model.
type DB struct {
	gorm      *gorm.DB
	mu        sync.Mutex
	dimension int
	path      string
}

// Open opens or creates the tenant database at path, running every pending
// migration and ensuring the vector index table matches embedDimension.
func Open(ctx context.Context, path string, embedDimension int) (storereg.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := runMigrations(gdb); err != nil {
		gdb.Exec("SELECT 1") // drain any pending handle before giving up
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if embedDimension <= 0 {
		embedDimension = 384
	}
	if err := gdb.Exec(vecTableDDL(embedDimension)).Error; err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	return &DB{gorm: gdb, dimension: embedDimension, path: path}, nil
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.gorm.WithContext(ctx).Transaction(fn)
}
