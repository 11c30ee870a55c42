package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, u *types.User) (*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error)
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error)
	EnsureByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error)
	MarkOnboardingComplete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, u *types.User) (*types.User, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if u == nil {
		u = &types.User{}
	}
	if err := t.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.User
	if err := t.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *userRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if externalID == "" {
		return nil, nil
	}
	var row types.User
	if err := t.WithContext(ctx).Where("external_id = ?", externalID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// EnsureByExternalID returns the user bound to externalID, creating it when
// absent. Concurrent first logins converge on one row.
func (r *userRepo) EnsureByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if externalID == "" {
		return r.Create(ctx, t, &types.User{})
	}
	row := &types.User{ID: uuid.New(), ExternalID: &externalID}
	if err := t.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return r.GetByExternalID(ctx, t, externalID)
}

func (r *userRepo) MarkOnboardingComplete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"onboarding_complete": true,
			"updated_at":          time.Now().UTC(),
		}).Error
}
