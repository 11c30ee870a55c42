package matching

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	types "github.com/yungbote/intromatch-backend/internal/domain"
)

type repoReader struct{ repo repos.ProfileRepo }

// ReaderFromRepo reads profiles outside any transaction.
func ReaderFromRepo(repo repos.ProfileRepo) ProfileReader { return repoReader{repo: repo} }

func (r repoReader) GetByUserID(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	return r.repo.GetByUserID(ctx, nil, userID)
}

func (r repoReader) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Profile, error) {
	return r.repo.GetByIDs(ctx, nil, ids)
}
