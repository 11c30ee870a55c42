package app

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/yungbote/intromatch-backend/internal/http"
	httpH "github.com/yungbote/intromatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/intromatch-backend/internal/http/middleware"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, clients Clients, svc Services, metrics *observability.Metrics) *gin.Engine {
	log.Info("Wiring router...")
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; authenticated routes reject every token")
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN not set; admin routes are disabled")
	}
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		AdminToken:     cfg.AdminToken,
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        metrics,
		ServiceName:    serviceName,

		HealthHandler:     httpH.NewHealthHandler(clients.DB),
		OnboardingHandler: httpH.NewOnboardingHandler(log, svc.Onboarding, svc.Users),
		UserHandler:       httpH.NewUserHandler(svc.Users),
		MatchHandler:      httpH.NewMatchHandler(log, svc.Users, svc.Matching),
		AdminHandler:      httpH.NewAdminHandler(log, svc.Maintenance),
	})
}
