// Package store persists pipeline state: the ledger of already
// processed source items and the per-run session records used for
// crash recovery.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the shared database handle behind the ledger and the
// session store.
type DB struct {
	gorm *gorm.DB
	log  hclog.Logger
}

// Open opens (or creates) the sqlite database and migrates the schema.
// The parent directory is created when missing; sqlite will not.
func Open(path string, log hclog.Logger) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir %s: %w", dir, err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&LedgerEntry{}, &SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &DB{gorm: db, log: log.Named("store")}, nil
}

// Ledger returns the dedup ledger backed by this database.
func (d *DB) Ledger() *Ledger {
	return &Ledger{db: d.gorm, log: d.log}
}

// Sessions returns the session store backed by this database.
func (d *DB) Sessions() *SessionStore {
	return &SessionStore{db: d.gorm, log: d.log}
}
