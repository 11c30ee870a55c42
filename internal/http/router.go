package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/intromatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/intromatch-backend/internal/http/middleware"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	AdminToken     string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	ServiceName    string

	HealthHandler     *httpH.HealthHandler
	OnboardingHandler *httpH.OnboardingHandler
	UserHandler       *httpH.UserHandler
	MatchHandler      *httpH.MatchHandler
	AdminHandler      *httpH.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Onboarding: session ids address the session, the token is optional
	if cfg.OnboardingHandler != nil {
		ob := api.Group("/onboarding")
		if cfg.AuthMiddleware != nil {
			ob.POST("/initiate", cfg.AuthMiddleware.OptionalAuth(), cfg.OnboardingHandler.Initiate)
			ob.GET("/latest", cfg.AuthMiddleware.RequireAuth(), cfg.OnboardingHandler.Latest)
		}
		ob.GET("/guidance", cfg.OnboardingHandler.Guidance)
		ob.GET("/:id", cfg.OnboardingHandler.GetSession)
		ob.POST("/:id/upload-target", cfg.OnboardingHandler.UploadTarget)
		ob.POST("/:id/notify-upload", cfg.OnboardingHandler.NotifyUpload)
	}

	// Events (public)
	if cfg.UserHandler != nil {
		api.GET("/events/:id", cfg.UserHandler.GetEvent)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())

		if cfg.UserHandler != nil {
			protected.GET("/users/me", cfg.UserHandler.GetMe)
			protected.GET("/users/me/events", cfg.UserHandler.ListMyEvents)
		}
		if cfg.MatchHandler != nil {
			protected.GET("/matches", cfg.MatchHandler.List)
		}
	}

	admin := api.Group("/")
	admin.Use(httpMW.RequireAdmin(cfg.AdminToken))
	{
		if cfg.AdminHandler != nil {
			admin.POST("/admin/reindex-all", cfg.AdminHandler.ReindexAll)
			admin.POST("/admin/resync-stale", cfg.AdminHandler.ResyncStale)
			admin.POST("/admin/cleanup", cfg.AdminHandler.Cleanup)
		}
		if cfg.OnboardingHandler != nil {
			admin.POST("/dev/onboard-from-text", cfg.OnboardingHandler.OnboardFromText)
		}
	}

	return r
}
