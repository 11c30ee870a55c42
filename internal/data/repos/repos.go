package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/data/repos/events"
	"github.com/yungbote/intromatch-backend/internal/data/repos/onboarding"
	"github.com/yungbote/intromatch-backend/internal/data/repos/profile"
	"github.com/yungbote/intromatch-backend/internal/data/repos/user"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type ProfileRepo = profile.ProfileRepo
type SessionRepo = onboarding.SessionRepo
type EventRepo = events.EventRepo
type ParticipationRepo = events.ParticipationRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }

func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return profile.NewProfileRepo(db, log)
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return onboarding.NewSessionRepo(db, log)
}

func NewEventRepo(db *gorm.DB, log *logger.Logger) EventRepo { return events.NewEventRepo(db, log) }

func NewParticipationRepo(db *gorm.DB, log *logger.Logger) ParticipationRepo {
	return events.NewParticipationRepo(db, log)
}
