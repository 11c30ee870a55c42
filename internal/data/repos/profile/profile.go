package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type ProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, p *types.Profile) (*types.Profile, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Profile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error)
	UpdateDocument(ctx context.Context, tx *gorm.DB, p *types.Profile) error
	UpdateCompleteness(ctx context.Context, tx *gorm.DB, id uuid.UUID, score float64) error
	MarkEmbedded(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	ListIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
	ListStale(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Profile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *profileRepo) Create(ctx context.Context, tx *gorm.DB, p *types.Profile) (*types.Profile, error) {
	if err := r.tx(tx).WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Profile, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Profile
	if err := r.tx(tx).WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *profileRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Profile, error) {
	var out []*types.Profile
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(tx).WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.Profile
	if err := r.tx(tx).WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *profileRepo) UpdateDocument(ctx context.Context, tx *gorm.DB, p *types.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	return r.tx(tx).WithContext(ctx).
		Model(&types.Profile{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"data":       p.Data,
			"updated_at": p.UpdatedAt,
		}).Error
}

func (r *profileRepo) UpdateCompleteness(ctx context.Context, tx *gorm.DB, id uuid.UUID, score float64) error {
	return r.tx(tx).WithContext(ctx).
		Model(&types.Profile{}).
		Where("id = ?", id).
		UpdateColumn("completeness_score", score).Error
}

// MarkEmbedded records the vector write without touching updated_at, so the
// staleness comparison stays meaningful.
func (r *profileRepo) MarkEmbedded(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.tx(tx).WithContext(ctx).
		Model(&types.Profile{}).
		Where("id = ?", id).
		UpdateColumn("embedding_updated_at", at.UTC()).Error
}

func (r *profileRepo) ListIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.tx(tx).WithContext(ctx).
		Model(&types.Profile{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListStale returns profiles never embedded or edited since their last embedding.
func (r *profileRepo) ListStale(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Profile, error) {
	var out []*types.Profile
	q := r.tx(tx).WithContext(ctx).
		Where("embedding_updated_at IS NULL OR embedding_updated_at < updated_at").
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
