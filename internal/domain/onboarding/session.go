package onboarding

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	StatusAwaitingAudio      SessionStatus = "AWAITING_AUDIO"
	StatusCompleted          SessionStatus = "COMPLETED"
	StatusNeedsClarification SessionStatus = "NEEDS_CLARIFICATION"
	StatusFailed             SessionStatus = "FAILED"
)

// Terminal reports whether the status ends a processing attempt. FAILED is
// terminal for the attempt but the session can be processed again.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNeedsClarification || s == StatusFailed
}

type Session struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID          *uuid.UUID     `gorm:"type:uuid;index" json:"event_id,omitempty"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ProfileID        uuid.UUID      `gorm:"type:uuid;not null" json:"profile_id"`
	ParticipationID  *uuid.UUID     `gorm:"type:uuid" json:"participation_id,omitempty"`
	Status           SessionStatus  `gorm:"column:status;not null;index" json:"status"`
	AudioStoragePath string         `gorm:"column:audio_storage_path" json:"audio_storage_path,omitempty"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "onboarding_session" }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
