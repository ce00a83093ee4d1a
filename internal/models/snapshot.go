package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StateSnapshot stores one serialized GlobalState document in the database
type StateSnapshot struct {
	gorm.Model
	SnapshotID string    `json:"snapshot_id" gorm:"uniqueIndex;not null"`
	Kind       string    `json:"kind" gorm:"index"` // "current" or "backup"
	Document   []byte    `json:"-"`
	TakenAt    time.Time `json:"taken_at" gorm:"index"`
}

const (
	SnapshotKindCurrent = "current"
	SnapshotKindBackup  = "backup"
)

func (s *StateSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.SnapshotID == "" {
		s.SnapshotID = uuid.NewString()
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}
	return nil
}
