package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *types.OnboardingSession) (*types.OnboardingSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error)
	Save(ctx context.Context, tx *gorm.DB, s *types.OnboardingSession) error
	FindLatest(ctx context.Context, tx *gorm.DB, userID uuid.UUID, eventID *uuid.UUID) (*types.OnboardingSession, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "OnboardingSessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.OnboardingSession) (*types.OnboardingSession, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.OnboardingSession
	if err := t.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sessionRepo) Save(ctx context.Context, tx *gorm.DB, s *types.OnboardingSession) error {
	t := tx
	if t == nil {
		t = r.db
	}
	s.UpdatedAt = time.Now().UTC()
	return t.WithContext(ctx).
		Model(&types.OnboardingSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":             s.Status,
			"audio_storage_path": s.AudioStoragePath,
			"participation_id":   s.ParticipationID,
			"updated_at":         s.UpdatedAt,
		}).Error
}

// FindLatest returns the most recently created session for the user, scoped
// to eventID when given.
func (r *sessionRepo) FindLatest(ctx context.Context, tx *gorm.DB, userID uuid.UUID, eventID *uuid.UUID) (*types.OnboardingSession, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).Where("user_id = ?", userID)
	if eventID != nil {
		q = q.Where("event_id = ?", *eventID)
	}
	var row types.OnboardingSession
	if err := q.Order("created_at DESC").Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
