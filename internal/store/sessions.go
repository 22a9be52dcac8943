package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storyreel/internal/types"
)

// SessionRecord is the persisted form of a pipeline session. Stage
// outputs are stored as one JSON document so a record is always written
// whole: a save is a single atomic upsert and a crash mid-write can
// never expose a half-updated record.
type SessionRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(160)"`
	SourceID      string    `gorm:"index;type:varchar(128);not null"`
	Stage         string    `gorm:"type:varchar(32);not null;index"`
	Outputs       string    `gorm:"type:text"`
	WorkDir       string    `gorm:"type:varchar(512)"`
	FailureReason string    `gorm:"type:varchar(512)"`
	Cancelled     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null;index"`
}

func (SessionRecord) TableName() string { return "sessions" }

// SessionStore persists sessions keyed by session id.
type SessionStore struct {
	db  *gorm.DB
	log hclog.Logger
}

// Save upserts the full session state in one transaction.
func (s *SessionStore) Save(sess *types.Session) error {
	outputs, err := json.Marshal(sess.Outputs)
	if err != nil {
		return fmt.Errorf("marshal session %s outputs: %w", sess.ID, err)
	}
	rec := SessionRecord{
		ID:            sess.ID,
		SourceID:      sess.SourceID,
		Stage:         string(sess.Stage),
		Outputs:       string(outputs),
		WorkDir:       sess.WorkDir,
		FailureReason: sess.FailureReason,
		Cancelled:     sess.Cancelled,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	s.log.Debug("session saved", "session_id", sess.ID, "stage", sess.Stage)
	return nil
}

// Load returns the session with the given id, or nil when absent.
func (s *SessionStore) Load(id string) (*types.Session, error) {
	var rec SessionRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return rec.toSession()
}

// ListRecoverable returns every non-terminal session ordered by last
// update ascending, so the oldest stalled work is resumed first.
func (s *SessionStore) ListRecoverable() ([]*types.Session, error) {
	var recs []SessionRecord
	err := s.db.
		Where("stage NOT IN ?", []string{string(types.StageDone), string(types.StageFailed)}).
		Order("updated_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list recoverable sessions: %w", err)
	}
	sessions := make([]*types.Session, 0, len(recs))
	for _, rec := range recs {
		sess, err := rec.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// ListAll returns every persisted session, newest first. Serves the
// operator status API.
func (s *SessionStore) ListAll(limit int) ([]*types.Session, error) {
	var recs []SessionRecord
	q := s.db.Order("updated_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]*types.Session, 0, len(recs))
	for _, rec := range recs {
		sess, err := rec.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// SetCancelled flags a session for cancellation. The orchestrator
// checks the flag between stages.
func (s *SessionStore) SetCancelled(id string) error {
	res := s.db.Model(&SessionRecord{}).Where("id = ?", id).Update("cancelled", true)
	if res.Error != nil {
		return fmt.Errorf("cancel session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cancel session %s: not found", id)
	}
	return nil
}

func (r *SessionRecord) toSession() (*types.Session, error) {
	sess := &types.Session{
		ID:            r.ID,
		SourceID:      r.SourceID,
		Stage:         types.Stage(r.Stage),
		WorkDir:       r.WorkDir,
		FailureReason: r.FailureReason,
		Cancelled:     r.Cancelled,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Outputs != "" {
		if err := json.Unmarshal([]byte(r.Outputs), &sess.Outputs); err != nil {
			return nil, fmt.Errorf("decode session %s outputs: %w", r.ID, err)
		}
	}
	return sess, nil
}
