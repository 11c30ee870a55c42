// Package maintenance holds the administrative bulk operations: re-embedding
// every profile, re-syncing stale vectors and wiping all state.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/data/db"
	"github.com/yungbote/intromatch-backend/internal/data/repos"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Indexer is the slice of the embedding engine bulk operations need.
type Indexer interface {
	Preflight(ctx context.Context) error
	EmbedAndStore(ctx context.Context, profileID uuid.UUID, text string) error
	Reset(ctx context.Context) error
}

type Deps struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Profiles repos.ProfileRepo
	Index    Indexer
	// Concurrency bounds in-flight embedding calls; <=0 means 4.
	Concurrency int
	// StaleBatch caps one ResyncStale pass; <=0 means 200.
	StaleBatch int
}

type Service struct {
	log         *logger.Logger
	db          *gorm.DB
	profiles    repos.ProfileRepo
	index       Indexer
	concurrency int
	staleBatch  int
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.DB == nil || deps.Profiles == nil || deps.Index == nil {
		return nil, fmt.Errorf("maintenance: missing deps")
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	if deps.StaleBatch <= 0 {
		deps.StaleBatch = 200
	}
	return &Service{
		log:         deps.Log.With("service", "MaintenanceService"),
		db:          deps.DB,
		profiles:    deps.Profiles,
		index:       deps.Index,
		concurrency: deps.Concurrency,
		staleBatch:  deps.StaleBatch,
	}, nil
}

// ReindexReport counts per-profile outcomes; Succeeded+Skipped+Failed == Total.
type ReindexReport struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ReindexAll re-embeds every profile. Per-profile failures are counted and
// never abort the batch.
func (s *Service) ReindexAll(ctx context.Context) (rep ReindexReport, err error) {
	ctx, span := observability.StartSpan(ctx, "maintenance.reindex_all")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.index.Preflight(ctx); err != nil {
		return rep, err
	}
	ids, err := s.profiles.ListIDs(ctx, nil)
	if err != nil {
		return rep, fmt.Errorf("list profiles: %w", err)
	}
	rows, err := s.profiles.GetByIDs(ctx, nil, ids)
	if err != nil {
		return rep, fmt.Errorf("load profiles: %w", err)
	}
	rep = s.embedAll(ctx, rows, false)
	// ids with no row (deleted mid-run) count as skipped
	rep.Skipped += len(ids) - len(rows)
	rep.Total = len(ids)
	span.SetAttributes(attribute.Int("total", rep.Total), attribute.Int("failed", rep.Failed))
	s.log.Info("Reindex complete", "total", rep.Total, "succeeded", rep.Succeeded,
		"skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

// ResyncStale re-embeds profiles never embedded or edited since their last
// embedding, at most one batch per call.
func (s *Service) ResyncStale(ctx context.Context) (rep ReindexReport, err error) {
	ctx, span := observability.StartSpan(ctx, "maintenance.resync_stale")
	defer func() { observability.EndSpan(span, err) }()

	rows, err := s.profiles.ListStale(ctx, nil, s.staleBatch)
	if err != nil {
		return rep, fmt.Errorf("list stale profiles: %w", err)
	}
	if len(rows) == 0 {
		return rep, nil
	}
	if err := s.index.Preflight(ctx); err != nil {
		return rep, err
	}
	rep = s.embedAll(ctx, rows, true)
	s.log.Info("Stale embedding resync complete", "total", rep.Total, "succeeded", rep.Succeeded,
		"skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func (s *Service) embedAll(ctx context.Context, rows []*types.Profile, markSkipped bool) ReindexReport {
	var ok, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			// never return an error: one profile must not cancel the rest
			switch err := s.embedOne(gctx, row, markSkipped); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, embedding.ErrEmptyText):
				skipped.Add(1)
			default:
				failed.Add(1)
				s.log.Warn("Profile re-embed failed", "profile_id", row.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	m := observability.Current()
	m.AddReindexProfiles("succeeded", int(ok.Load()))
	m.AddReindexProfiles("skipped", int(skipped.Load()))
	m.AddReindexProfiles("failed", int(failed.Load()))
	return ReindexReport{
		Total:     len(rows),
		Succeeded: int(ok.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
}

func (s *Service) embedOne(ctx context.Context, row *types.Profile, markSkipped bool) error {
	doc, err := row.Document()
	if err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	err = s.index.EmbedAndStore(ctx, row.ID, doc.EmbeddingText())
	if errors.Is(err, embedding.ErrEmptyText) && markSkipped {
		// empty profiles would otherwise stay stale and be picked up on every pass
		if merr := s.profiles.MarkEmbedded(ctx, nil, row.ID, time.Now().UTC()); merr != nil {
			s.log.Warn("Failed to mark empty profile as synced", "profile_id", row.ID, "error", merr)
		}
	}
	return err
}

// CleanupReport lists what Cleanup wiped.
type CleanupReport struct {
	Tables       []string `json:"tables"`
	VectorsReset bool     `json:"vectors_reset"`
}

// Cleanup truncates every table and recreates the vector collection empty.
func (s *Service) Cleanup(ctx context.Context) (rep CleanupReport, err error) {
	ctx, span := observability.StartSpan(ctx, "maintenance.cleanup")
	defer func() { observability.EndSpan(span, err) }()

	tables, err := db.TruncateAll(ctx, s.db)
	if err != nil {
		return rep, fmt.Errorf("truncate tables: %w", err)
	}
	rep.Tables = tables
	if err := s.index.Reset(ctx); err != nil {
		return rep, fmt.Errorf("reset vector index: %w", err)
	}
	rep.VectorsReset = true
	s.log.Warn("All data wiped", "tables", len(tables))
	return rep, nil
}
