package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/modules/extraction"
	"github.com/yungbote/intromatch-backend/internal/modules/maintenance"
	"github.com/yungbote/intromatch-backend/internal/modules/matching"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
	"github.com/yungbote/intromatch-backend/internal/modules/profiles"
	"github.com/yungbote/intromatch-backend/internal/modules/transcription"
	"github.com/yungbote/intromatch-backend/internal/modules/users"
	"github.com/yungbote/intromatch-backend/internal/modules/validation"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type Services struct {
	Validation  *validation.Engine
	Extraction  *extraction.Service
	Profiles    *profiles.Service
	Embedding   *embedding.Engine
	EmbedQueue  *embedding.Queue
	Onboarding  *onboarding.Service
	Matching    *matching.Service
	Maintenance *maintenance.Service
	Users       *users.Service
	// Scheduler is nil when RESYNC_CRON is off.
	Scheduler *maintenance.Scheduler
}

func wireServices(ctx context.Context, db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")
	var out Services

	rules := validation.DefaultRules()
	if cfg.ValidationRules != "" {
		loaded, err := validation.LoadRules(cfg.ValidationRules)
		if err != nil {
			return out, fmt.Errorf("load validation rules: %w", err)
		}
		rules = loaded
		log.Info("Loaded validation rules", "path", cfg.ValidationRules, "count", len(rules))
	}
	out.Validation = validation.New(log, rules)

	transcriber, err := wireTranscriber(log, cfg, clients)
	if err != nil {
		return out, err
	}

	if out.Extraction, err = extraction.New(extraction.Deps{Log: log, LLM: clients.LLM, MergeMode: cfg.MergeMode}); err != nil {
		return out, fmt.Errorf("init extraction: %w", err)
	}
	if out.Profiles, err = profiles.New(profiles.Deps{Log: log, Profiles: reposet.Profiles, Extractor: out.Extraction}); err != nil {
		return out, fmt.Errorf("init profiles: %w", err)
	}

	out.Embedding, err = embedding.New(embedding.Deps{
		Log:      log,
		Embedder: clients.LLM,
		Store:    clients.Vectors,
		Marker:   embedding.MarkerFromRepo(reposet.Profiles),
		Dim:      cfg.Qdrant.VectorDim,
	})
	if err != nil {
		return out, fmt.Errorf("init embedding: %w", err)
	}
	if err := out.Embedding.Preflight(ctx); err != nil {
		return out, fmt.Errorf("vector index preflight: %w", err)
	}
	out.EmbedQueue = embedding.NewQueue(log, out.Embedding, cfg.EmbedQueueSize, cfg.EmbedWorkers)

	out.Onboarding, err = onboarding.New(onboarding.Deps{
		Log:            log,
		DB:             db,
		Users:          reposet.Users,
		Sessions:       reposet.Sessions,
		Events:         reposet.Events,
		Participations: reposet.Participations,
		Profiles:       out.Profiles,
		Transcriber:    transcriber,
		EventExtractor: out.Extraction,
		Validator:      out.Validation,
		Uploads:        clients.Bucket,
		Embeds:         out.EmbedQueue,
		Locker:         clients.Locker,
		Config:         cfg.Onboarding,
	})
	if err != nil {
		return out, fmt.Errorf("init onboarding: %w", err)
	}

	out.Matching, err = matching.New(matching.Deps{
		Log:       log,
		Profiles:  matching.ReaderFromRepo(reposet.Profiles),
		Index:     out.Embedding,
		Explainer: out.Extraction,
	})
	if err != nil {
		return out, fmt.Errorf("init matching: %w", err)
	}

	out.Maintenance, err = maintenance.New(maintenance.Deps{
		Log:         log,
		DB:          db,
		Profiles:    reposet.Profiles,
		Index:       out.Embedding,
		Concurrency: cfg.ReindexConcurrency,
		StaleBatch:  cfg.StaleBatch,
	})
	if err != nil {
		return out, fmt.Errorf("init maintenance: %w", err)
	}

	out.Users, err = users.New(users.Deps{
		Log:            log,
		Users:          reposet.Users,
		Profiles:       reposet.Profiles,
		Events:         reposet.Events,
		Participations: reposet.Participations,
	})
	if err != nil {
		return out, fmt.Errorf("init users: %w", err)
	}
	return out, nil
}

func wireTranscriber(log *logger.Logger, cfg Config, clients Clients) (onboarding.Transcriber, error) {
	if cfg.TranscriptMode == TranscriptionModeStub {
		log.Warn("TRANSCRIPTION_MODE=stub; audio is not transcribed")
		return transcription.NewStub(log), nil
	}
	adapter, err := transcription.NewAdapter(transcription.AdapterDeps{
		Log:      log,
		Provider: transcription.NewSpeechProvider(clients.Speech, clients.Bucket),
		Config:   cfg.Transcription,
	})
	if err != nil {
		return nil, fmt.Errorf("init transcription: %w", err)
	}
	return adapter, nil
}
