package embedding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
)

type repoMarker struct {
	repo repos.ProfileRepo
}

// MarkerFromRepo records embedding times on the profile row.
func MarkerFromRepo(repo repos.ProfileRepo) EmbeddedMarker {
	return repoMarker{repo: repo}
}

func (m repoMarker) MarkEmbedded(ctx context.Context, profileID uuid.UUID, at time.Time) error {
	return m.repo.MarkEmbedded(ctx, nil, profileID, at)
}
