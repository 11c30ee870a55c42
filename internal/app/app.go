package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	httpapi "github.com/yungbote/intromatch-backend/internal/http"
	"github.com/yungbote/intromatch-backend/internal/modules/maintenance"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Router   *gin.Engine

	server       *httpapi.Server
	shutdownOTel func(context.Context) error
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// New loads configuration and wires every dependency. Background workers do
// not run until Start.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	shutdownOTel := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log, cfg.MetricsEnabled)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownOTel(ctx)
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(clients.DB.DB(), log)
	serviceset, err := wireServices(ctx, clients.DB.DB(), log, cfg, clients, reposet)
	if err != nil {
		clients.Close(log)
		_ = shutdownOTel(ctx)
		log.Sync()
		return nil, err
	}
	router := wireRouter(log, cfg, clients, serviceset, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Router:       router,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Start launches the embedding workers and, when scheduled, the stale
// profile resync.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Services.EmbedQueue.Start(ctx)

	sched, err := maintenance.NewScheduler(ctx, a.Log, a.Services.Maintenance, a.Cfg.ResyncCron)
	if err != nil {
		cancel()
		a.cancel = nil
		return err
	}
	a.Services.Scheduler = sched
	a.Services.Scheduler.Start()
	return nil
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.server = httpapi.NewServer(a.Cfg.HTTPAddr, a.Router)
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.server.Run()
}

// Shutdown stops accepting requests and background work. Queued embedding
// tasks that never ran are picked up by the next resync.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.Services.Scheduler.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	drained := make(chan struct{})
	go func() {
		a.Services.EmbedQueue.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		a.Log.Warn("Embedding workers did not drain before shutdown deadline")
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		a.Clients.Close(a.Log)
		if a.shutdownOTel != nil {
			_ = a.shutdownOTel(context.Background())
		}
		a.Log.Sync()
	})
}
