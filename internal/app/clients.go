package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/intromatch-backend/internal/data/db"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/openai"
	"github.com/yungbote/intromatch-backend/internal/platform/qdrant"
	"github.com/yungbote/intromatch-backend/internal/platform/redislock"
)

// Clients are the process-wide connections to external systems.
type Clients struct {
	DB      *db.Service
	Bucket  gcp.AudioBucket
	Speech  gcp.Speech
	LLM     openai.Client
	Vectors qdrant.Store
	Locker  redislock.Locker
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	var out Clients
	fail := func(err error) (Clients, error) {
		out.Close(log)
		return Clients{}, err
	}

	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		return fail(fmt.Errorf("init db: %w", err))
	}
	out.DB = dbs
	if err := db.AutoMigrateAll(dbs.DB()); err != nil {
		return fail(fmt.Errorf("automigrate: %w", err))
	}

	if out.Bucket, err = resolveAudioBucket(ctx, log, cfg); err != nil {
		return fail(err)
	}

	if cfg.TranscriptMode == TranscriptionModeGCP {
		if _, ok := out.Bucket.(unconfiguredBucket); ok {
			return fail(fmt.Errorf("TRANSCRIPTION_MODE=gcp requires AUDIO_GCS_BUCKET_NAME"))
		}
		if out.Speech, err = gcp.NewSpeech(ctx, log, cfg.Speech); err != nil {
			return fail(fmt.Errorf("init speech: %w", err))
		}
	}

	if out.LLM, err = openai.NewClient(log, cfg.OpenAI); err != nil {
		return fail(fmt.Errorf("init openai: %w", err))
	}

	if out.Vectors, err = resolveVectorStore(ctx, log, cfg.Qdrant); err != nil {
		return fail(err)
	}

	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set; per-user locks are process-local")
		out.Locker = redislock.NewLocalLocker()
	} else if out.Locker, err = redislock.NewRedisLocker(ctx, log, cfg.Redis); err != nil {
		return fail(fmt.Errorf("init redis lock: %w", err))
	}
	return out, nil
}

func (c *Clients) Close(log *logger.Logger) {
	var errs []error
	if c.Locker != nil {
		errs = append(errs, c.Locker.Close())
	}
	if c.Vectors != nil {
		errs = append(errs, c.Vectors.Close())
	}
	if c.Speech != nil {
		errs = append(errs, c.Speech.Close())
	}
	if c.Bucket != nil {
		errs = append(errs, c.Bucket.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if err := errors.Join(errs...); err != nil && log != nil {
		log.Warn("Closing clients", "error", err)
	}
}
