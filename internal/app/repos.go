package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type Repos struct {
	Users          repos.UserRepo
	Profiles       repos.ProfileRepo
	Sessions       repos.SessionRepo
	Events         repos.EventRepo
	Participations repos.ParticipationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Users:          repos.NewUserRepo(db, log),
		Profiles:       repos.NewProfileRepo(db, log),
		Sessions:       repos.NewSessionRepo(db, log),
		Events:         repos.NewEventRepo(db, log),
		Participations: repos.NewParticipationRepo(db, log),
	}
}
