// Package matching answers "who should this user meet": nearest neighbours
// of the user's profile vector, each with a short explanation.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

const DefaultLimit = 5

type ProfileReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*types.Profile, error)
}

type VectorIndex interface {
	GetVector(ctx context.Context, profileID uuid.UUID) ([]float32, error)
	FindSimilar(ctx context.Context, vector []float32, limit int, exclude *uuid.UUID) ([]embedding.Similar, error)
}

type Explainer interface {
	GenerateMatchReason(ctx context.Context, a, b profile.Condensed) (string, error)
}

type Deps struct {
	Log      *logger.Logger
	Profiles ProfileReader
	Index    VectorIndex
	// Explainer is optional; without it every match gets the score fallback.
	Explainer Explainer
}

type Service struct {
	log       *logger.Logger
	profiles  ProfileReader
	index     VectorIndex
	explainer Explainer
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.Profiles == nil || deps.Index == nil {
		return nil, fmt.Errorf("matching: missing deps")
	}
	return &Service{
		log:       deps.Log.With("service", "MatchingService"),
		profiles:  deps.Profiles,
		index:     deps.Index,
		explainer: deps.Explainer,
	}, nil
}

// Match is computed per request and never stored.
type Match struct {
	UserID    uuid.UUID `json:"user_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	Score     float64   `json:"score"`
}

func fallbackReason(score float64) string {
	return fmt.Sprintf("similarity score: %.2f", score)
}

// FindTopMatches returns up to k matches in similarity order. A user without
// a profile or without a stored vector gets an empty list.
func (s *Service) FindTopMatches(ctx context.Context, userID uuid.UUID, k int) (out []Match, err error) {
	ctx, span := observability.StartSpan(ctx, "matching.find_top_matches",
		attribute.String("user_id", userID.String()), attribute.Int("k", k))
	defer func() { observability.EndSpan(span, err) }()

	if k <= 0 {
		k = DefaultLimit
	}
	out = []Match{}

	self, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if self == nil {
		return out, nil
	}
	vec, err := s.index.GetVector(ctx, self.ID)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		s.log.Debug("Profile has no vector yet", "user_id", userID, "profile_id", self.ID)
		return out, nil
	}

	hits, err := s.index.FindSimilar(ctx, vec, k, &self.ID)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ProfileID)
	}
	rows, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate profiles: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Profile, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	selfView := condensed(s.log, self)
	for _, h := range hits {
		row := byID[h.ProfileID]
		if row == nil {
			s.log.Warn("Skipping match candidate without profile", "profile_id", h.ProfileID)
			continue
		}
		doc, derr := row.Document()
		if derr != nil {
			s.log.Warn("Skipping match candidate with unreadable profile", "profile_id", h.ProfileID, "error", derr)
			continue
		}
		m := Match{UserID: row.UserID, ProfileID: row.ID, Name: doc.DisplayName(), Score: h.Score}
		m.Reason = s.reason(ctx, selfView, doc, m)
		out = append(out, m)
	}
	return out, nil
}

// reason never fails; any problem yields the score fallback.
func (s *Service) reason(ctx context.Context, self profile.Condensed, other profile.Document, m Match) string {
	if s.explainer == nil || m.Name == "" {
		return fallbackReason(m.Score)
	}
	text, err := s.explainer.GenerateMatchReason(ctx, self, other.Condense())
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.Warn("Match reason generation failed; using fallback", "profile_id", m.ProfileID, "error", err)
		return fallbackReason(m.Score)
	}
	return strings.TrimSpace(text)
}

func condensed(log *logger.Logger, p *types.Profile) profile.Condensed {
	doc, err := p.Document()
	if err != nil {
		log.Warn("Own profile unreadable; explaining from empty view", "profile_id", p.ID, "error", err)
		return profile.Condensed{}
	}
	return doc.Condense()
}
