package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Task asks for one profile to be (re-)embedded.
type Task struct {
	ProfileID uuid.UUID
	Text      string
	// Source labels metrics, e.g. "onboarding" or "resync".
	Source string
}

type storer interface {
	EmbedAndStore(ctx context.Context, profileID uuid.UUID, text string) error
}

// Queue hands embedding work off to background workers. Enqueue never
// blocks: when the buffer is full the task is dropped and left to the
// periodic resync.
type Queue struct {
	log     *logger.Logger
	engine  storer
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

func NewQueue(log *logger.Logger, engine storer, size, workers int) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		log:     log.With("component", "EmbedQueue"),
		engine:  engine,
		tasks:   make(chan Task, size),
		workers: workers,
	}
}

// Enqueue reports whether the task was accepted.
func (q *Queue) Enqueue(t Task) bool {
	select {
	case q.tasks <- t:
		observability.Current().SetEmbedQueueDepth(len(q.tasks))
		return true
	default:
		q.log.Warn("Embedding queue full; task dropped", "profile_id", t.ProfileID, "source", t.Source)
		observability.Current().IncEmbedResult(t.Source, "dropped")
		return false
	}
}

// Start launches the workers. They exit when ctx is done.
func (q *Queue) Start(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("Starting embedding workers", "workers", q.workers, "capacity", cap(q.tasks))
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.runLoop(ctx, i+1)
		}
	})
}

// Wait blocks until every worker has stopped.
func (q *Queue) Wait() { q.wg.Wait() }

func (q *Queue) runLoop(ctx context.Context, workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.log.Info("Embedding worker stopped", "worker_id", workerID)
			return
		case t := <-q.tasks:
			observability.Current().SetEmbedQueueDepth(len(q.tasks))
			q.process(ctx, workerID, t)
		}
	}
}

func (q *Queue) process(ctx context.Context, workerID int, t Task) {
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			q.log.Error("Embedding task panic", "worker_id", workerID, "profile_id", t.ProfileID, "panic", fmt.Sprint(r))
		}
		observability.Current().IncEmbedResult(t.Source, status)
	}()

	err := q.engine.EmbedAndStore(ctx, t.ProfileID, t.Text)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyText):
		status = "skipped"
	default:
		status = "error"
		q.log.Warn("Profile embedding failed; left for resync", "worker_id", workerID,
			"profile_id", t.ProfileID, "source", t.Source, "error", err)
	}
}
