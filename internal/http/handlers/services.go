package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/modules/maintenance"
	"github.com/yungbote/intromatch-backend/internal/modules/matching"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
	"github.com/yungbote/intromatch-backend/internal/modules/users"
	"github.com/yungbote/intromatch-backend/internal/modules/validation"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
)

type OnboardingService interface {
	Initiate(ctx context.Context, in onboarding.InitiateInput) (*onboarding.InitiateResult, error)
	RequestAdditionalUploadTarget(ctx context.Context, sessionID uuid.UUID, label string) (*gcp.UploadTarget, error)
	ProcessAudio(ctx context.Context, sessionID uuid.UUID, storageKey string) (*onboarding.ProcessResult, error)
	OnboardFromText(ctx context.Context, in onboarding.OnboardTextInput) (*onboarding.ProcessResult, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
	FindLatestSession(ctx context.Context, userID uuid.UUID, eventID *uuid.UUID) (*types.OnboardingSession, error)
	BaseGuidance() validation.Result
}

type UserService interface {
	Resolve(ctx context.Context, externalID string) (*types.User, error)
	GetMe(ctx context.Context, externalID string) (*users.Me, error)
	ListMyEvents(ctx context.Context, externalID string) ([]users.JoinedEvent, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*types.Event, error)
}

type MatchService interface {
	FindTopMatches(ctx context.Context, userID uuid.UUID, k int) ([]matching.Match, error)
}

type MaintenanceService interface {
	ReindexAll(ctx context.Context) (maintenance.ReindexReport, error)
	ResyncStale(ctx context.Context) (maintenance.ReindexReport, error)
	Cleanup(ctx context.Context) (maintenance.CleanupReport, error)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, &types.ValidationError{Field: name, Reason: "must be a uuid"}
	}
	return id, nil
}

// optionalUUID parses s, treating blank as absent.
func optionalUUID(field, s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, &types.ValidationError{Field: field, Reason: "must be a uuid"}
	}
	return &id, nil
}
