package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type EventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, e *types.Event) (*types.Event, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Event, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Create(ctx context.Context, tx *gorm.DB, e *types.Event) (*types.Event, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (r *eventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Event, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Event
	if err := t.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

type ParticipationRepo interface {
	Ensure(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventParticipation, error)
	Get(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventParticipation, error)
	UpdateContext(ctx context.Context, tx *gorm.DB, p *types.EventParticipation) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.EventParticipation, error)
}

type participationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParticipationRepo(db *gorm.DB, baseLog *logger.Logger) ParticipationRepo {
	return &participationRepo{db: db, log: baseLog.With("repo", "EventParticipationRepo")}
}

// Ensure joins the user to the event once; later calls return the existing row.
func (r *participationRepo) Ensure(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventParticipation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	row := &types.EventParticipation{ID: uuid.New(), UserID: userID, EventID: eventID, JoinedAt: time.Now().UTC()}
	if err := row.SetContext(types.NewEventContext(eventID)); err != nil {
		return nil, err
	}
	if err := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, t, userID, eventID)
}

func (r *participationRepo) Get(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (*types.EventParticipation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var row types.EventParticipation
	if err := t.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *participationRepo) UpdateContext(ctx context.Context, tx *gorm.DB, p *types.EventParticipation) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Model(&types.EventParticipation{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"context_data":       p.ContextData,
			"completeness_score": p.CompletenessScore,
			"onboarding_id":      p.OnboardingID,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *participationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.EventParticipation, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.EventParticipation
	if err := t.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
