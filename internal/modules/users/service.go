// Package users serves the read side for the authenticated user: who they
// are, their profile and the events they joined.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type Deps struct {
	Log            *logger.Logger
	Users          repos.UserRepo
	Profiles       repos.ProfileRepo
	Events         repos.EventRepo
	Participations repos.ParticipationRepo
}

type Service struct {
	log  *logger.Logger
	deps Deps
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.Users == nil || deps.Profiles == nil || deps.Events == nil || deps.Participations == nil {
		return nil, fmt.Errorf("users: missing deps")
	}
	return &Service{log: deps.Log.With("service", "UserService"), deps: deps}, nil
}

type Me struct {
	User    *types.User       `json:"user"`
	Profile *profile.Document `json:"profile"`
	// CompletenessScore is 0 until the first processed recording.
	CompletenessScore float64 `json:"completeness_score"`
}

type JoinedEvent struct {
	Event             *types.Event               `json:"event"`
	Context           types.EventContextDocument `json:"context"`
	CompletenessScore float64                    `json:"completeness_score"`
}

// Resolve maps an identity-provider subject to the local user.
func (s *Service) Resolve(ctx context.Context, externalID string) (*types.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: no subject", types.ErrUnauthorized)
	}
	u, err := s.deps.Users.GetByExternalID(ctx, nil, externalID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, &types.NotFoundError{Entity: "user", ID: externalID}
	}
	return u, nil
}

func (s *Service) GetMe(ctx context.Context, externalID string) (*Me, error) {
	u, err := s.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	out := &Me{User: u}
	p, err := s.deps.Profiles.GetByUserID(ctx, nil, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p != nil {
		doc, err := p.Document()
		if err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", p.ID, err)
		}
		out.Profile = &doc
		out.CompletenessScore = p.CompletenessScore
	}
	return out, nil
}

func (s *Service) ListMyEvents(ctx context.Context, externalID string) ([]JoinedEvent, error) {
	u, err := s.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	parts, err := s.deps.Participations.ListByUser(ctx, nil, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	out := make([]JoinedEvent, 0, len(parts))
	for _, p := range parts {
		doc, err := p.Context()
		if err != nil {
			s.log.Warn("Unreadable participation context", "participation_id", p.ID, "error", err)
			doc = types.NewEventContext(p.EventID)
		}
		out = append(out, JoinedEvent{Event: p.Event, Context: doc, CompletenessScore: p.CompletenessScore})
	}
	return out, nil
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*types.Event, error) {
	ev, err := s.deps.Events.GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if ev == nil {
		return nil, &types.NotFoundError{Entity: "event", ID: id.String()}
	}
	return ev, nil
}
