package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLedgerUnavailable wraps storage failures on ledger operations.
// The orchestrator stops accepting new work while the ledger cannot be
// read, since dedup can no longer be guaranteed.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// LedgerEntry marks one source item as already turned into a video.
// Entries are append-only; the core never deletes them.
type LedgerEntry struct {
	SourceID    string    `gorm:"primaryKey;type:varchar(128)"`
	ProcessedAt time.Time `gorm:"not null;index"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// Ledger is the append-only record of processed source-item ids.
type Ledger struct {
	db  *gorm.DB
	log hclog.Logger
}

// Has reports whether id was already processed.
func (l *Ledger) Has(id string) (bool, error) {
	var count int64
	err := l.db.Model(&LedgerEntry{}).Where("source_id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: has %s: %v", ErrLedgerUnavailable, id, err)
	}
	return count > 0, nil
}

// Record marks id as processed. Idempotent: recording an id that is
// already present keeps the original timestamp.
func (l *Ledger) Record(id string, processedAt time.Time) error {
	entry := LedgerEntry{SourceID: id, ProcessedAt: processedAt}
	err := l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("%w: record %s: %v", ErrLedgerUnavailable, id, err)
	}
	l.log.Debug("ledger entry recorded", "source_id", id)
	return nil
}
