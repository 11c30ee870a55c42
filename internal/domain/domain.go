package domain

import (
	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/domain/events"
	"github.com/yungbote/intromatch-backend/internal/domain/onboarding"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/domain/user"
)

type (
	User = user.User

	Profile          = profile.Profile
	ProfileDocument  = profile.Document
	CondensedProfile = profile.Condensed

	OnboardingSession = onboarding.Session
	SessionStatus     = onboarding.SessionStatus

	Event                = events.Event
	EventParticipation   = events.Participation
	EventContextDocument = events.ContextDocument
)

const (
	SessionAwaitingAudio      = onboarding.StatusAwaitingAudio
	SessionCompleted          = onboarding.StatusCompleted
	SessionNeedsClarification = onboarding.StatusNeedsClarification
	SessionFailed             = onboarding.StatusFailed
)

// Models lists every persisted entity in migration order.
func Models() []any {
	return []any{
		&user.User{},
		&profile.Profile{},
		&events.Event{},
		&onboarding.Session{},
		&events.Participation{},
	}
}

func NewEventContext(eventID uuid.UUID) EventContextDocument {
	return events.NewContextDocument(eventID)
}

func NewProfileDocument() ProfileDocument {
	return profile.NewDocument()
}
