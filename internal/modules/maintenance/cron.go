package maintenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Scheduler runs ResyncStale on a cron schedule such as "@every 15m".
type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron
}

// NewScheduler returns nil when schedule is empty or "off".
func NewScheduler(ctx context.Context, log *logger.Logger, svc *Service, schedule string) (*Scheduler, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || strings.EqualFold(schedule, "off") {
		return nil, nil
	}
	log = log.With("component", "ResyncScheduler")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		rep, err := svc.ResyncStale(ctx)
		if err != nil {
			log.Warn("Scheduled resync failed", "error", err)
			return
		}
		if rep.Total > 0 {
			log.Info("Scheduled resync ran", "total", rep.Total, "failed", rep.Failed)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse RESYNC_CRON %q: %w", schedule, err)
	}
	return &Scheduler{log: log, cron: c}, nil
}

func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.log.Info("Resync scheduler started")
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
