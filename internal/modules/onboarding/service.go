// Package onboarding runs the voice onboarding state machine: sessions are
// created in AWAITING_AUDIO and each submitted recording moves them to
// COMPLETED, NEEDS_CLARIFICATION or FAILED.
package onboarding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/modules/extraction"
	"github.com/yungbote/intromatch-backend/internal/modules/validation"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
	"github.com/yungbote/intromatch-backend/internal/platform/redislock"
)

type Deps struct {
	Log            *logger.Logger
	DB             *gorm.DB
	Users          repos.UserRepo
	Sessions       repos.SessionRepo
	Events         repos.EventRepo
	Participations repos.ParticipationRepo
	Profiles       ProfileStore
	Transcriber    Transcriber
	EventExtractor EventContextExtractor
	Validator      Validator
	Uploads        UploadSigner
	Embeds         EmbedDispatcher
	Locker         redislock.Locker
	Config         Config
	Now            func() time.Time
}

type Service struct {
	log   *logger.Logger
	deps  Deps
	cfg   Config
	now   func() time.Time
	clock *keyClock
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.DB == nil || deps.Users == nil || deps.Sessions == nil ||
		deps.Events == nil || deps.Participations == nil || deps.Profiles == nil ||
		deps.Transcriber == nil || deps.EventExtractor == nil || deps.Validator == nil ||
		deps.Uploads == nil || deps.Embeds == nil || deps.Locker == nil {
		return nil, fmt.Errorf("onboarding: missing deps")
	}
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = def.UploadTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		log:   deps.Log.With("service", "OnboardingService"),
		deps:  deps,
		cfg:   cfg,
		now:   now,
		clock: &keyClock{now: now},
	}, nil
}

type InitiateInput struct {
	EventID        *uuid.UUID
	ExternalUserID string
	// Context labels the recording, e.g. "initial" or "event-goals".
	Context string
}

type InitiateResult struct {
	Session *types.OnboardingSession
	Upload  *gcp.UploadTarget
	Context string
}

// ProcessResult is the session after processing plus the validation verdict
// that decided its status.
type ProcessResult struct {
	Session    *types.OnboardingSession
	Validation validation.Result
}

// Initiate creates (or resolves) the user, their profile and a new session,
// then issues an upload target for the first recording.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if in.EventID != nil {
		ev, err := s.deps.Events.GetByID(ctx, nil, *in.EventID)
		if err != nil {
			return nil, fmt.Errorf("load event: %w", err)
		}
		if ev == nil {
			return nil, &types.NotFoundError{Entity: "event", ID: in.EventID.String()}
		}
	}

	sess, err := s.createSession(ctx, in.ExternalUserID, in.EventID)
	if err != nil {
		return nil, err
	}

	label := uploadContext(in.Context)
	target, err := s.deps.Uploads.PresignUpload(ctx, initialKey(sess.ID, label), audioContentType, s.cfg.UploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	s.log.Info("Onboarding initiated", "session_id", sess.ID, "user_id", sess.UserID, "event_id", sess.EventID)
	return &InitiateResult{Session: sess, Upload: target, Context: label}, nil
}

func (s *Service) createSession(ctx context.Context, externalUserID string, eventID *uuid.UUID) (*types.OnboardingSession, error) {
	var sess *types.OnboardingSession
	err := s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.deps.Users.EnsureByExternalID(ctx, tx, strings.TrimSpace(externalUserID))
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		p, err := s.deps.Profiles.EnsureForUser(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		expires := s.now().Add(s.cfg.SessionTTL)
		row := &types.OnboardingSession{
			UserID:    u.ID,
			ProfileID: p.ID,
			EventID:   eventID,
			Status:    types.SessionAwaitingAudio,
			ExpiresAt: &expires,
		}
		if eventID != nil {
			part, err := s.deps.Participations.Ensure(ctx, tx, u.ID, *eventID)
			if err != nil {
				return fmt.Errorf("join event: %w", err)
			}
			row.ParticipationID = &part.ID
		}
		sess, err = s.deps.Sessions.Create(ctx, tx, row)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RequestAdditionalUploadTarget issues a fresh, time-suffixed key for another
// recording on an existing session.
func (s *Service) RequestAdditionalUploadTarget(ctx context.Context, sessionID uuid.UUID, label string) (*gcp.UploadTarget, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	key := additionalKey(sess.ID, label, s.clock.next())
	target, err := s.deps.Uploads.PresignUpload(ctx, key, audioContentType, s.cfg.UploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return target, nil
}

// GetSession fails with SessionNotFoundError when absent.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	sess, err := s.deps.Sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, &types.SessionNotFoundError{SessionID: sessionID.String()}
	}
	return sess, nil
}

// FindLatestSession returns nil when the user has no session.
func (s *Service) FindLatestSession(ctx context.Context, userID uuid.UUID, eventID *uuid.UUID) (*types.OnboardingSession, error) {
	return s.deps.Sessions.FindLatest(ctx, nil, userID, eventID)
}

// BaseGuidance is what to tell a user who has said nothing yet.
func (s *Service) BaseGuidance() validation.Result {
	return s.deps.Validator.Validate(nil)
}

// ProcessAudio transcribes the uploaded recording and runs it through the
// profile pipeline.
func (s *Service) ProcessAudio(ctx context.Context, sessionID uuid.UUID, storageKey string) (*ProcessResult, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(storageKey)
	if !strings.HasPrefix(key, sessionKeyPrefix(sess.ID)) {
		return nil, &types.ValidationError{Field: "storage_key", Reason: "does not belong to this session"}
	}
	return s.process(ctx, sess, key, func(ctx context.Context) (string, error) {
		return s.deps.Transcriber.TranscribeAudio(ctx, key)
	})
}

type OnboardTextInput struct {
	ExternalUserID string
	EventID        *uuid.UUID
	Text           string
}

// OnboardFromText runs the pipeline on literal text instead of a recording.
func (s *Service) OnboardFromText(ctx context.Context, in OnboardTextInput) (*ProcessResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "required"}
	}
	if in.EventID != nil {
		ev, err := s.deps.Events.GetByID(ctx, nil, *in.EventID)
		if err != nil {
			return nil, fmt.Errorf("load event: %w", err)
		}
		if ev == nil {
			return nil, &types.NotFoundError{Entity: "event", ID: in.EventID.String()}
		}
	}
	sess, err := s.createSession(ctx, in.ExternalUserID, in.EventID)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, sess, "", func(context.Context) (string, error) { return text, nil })
}

func (s *Service) process(ctx context.Context, sess *types.OnboardingSession, storageKey string, source func(context.Context) (string, error)) (res *ProcessResult, err error) {
	ctx, span := observability.StartSpan(ctx, "onboarding.process",
		attribute.String("session_id", sess.ID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if sess.Expired(s.now()) {
		return nil, &types.ValidationError{Field: "session", Reason: "expired"}
	}

	release, err := s.lockUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	// another holder may have moved the session while we waited
	if fresh, err := s.deps.Sessions.GetByID(ctx, nil, sess.ID); err == nil && fresh != nil {
		sess = fresh
	}
	if storageKey != "" {
		sess.AudioStoragePath = storageKey
	}

	row, doc, verdict, err := s.runPipeline(ctx, sess, source)
	if err != nil {
		s.markFailed(ctx, sess, err)
		return nil, err
	}

	if verdict.IsComplete {
		sess.Status = types.SessionCompleted
	} else {
		sess.Status = types.SessionNeedsClarification
	}
	task := embedding.Task{ProfileID: row.ID, Text: doc.EmbeddingText(), Source: "onboarding"}
	if err := s.saveOutcome(ctx, sess); err != nil {
		// the merged profile is already stored
		s.markFailed(ctx, sess, err)
		s.deps.Embeds.Enqueue(task)
		return nil, err
	}
	observability.Current().ObserveOnboardingOutcome(string(sess.Status))
	s.log.Info("Onboarding session processed", "session_id", sess.ID, "user_id", sess.UserID,
		"status", string(sess.Status), "completeness", verdict.CompletenessScore)

	s.deps.Embeds.Enqueue(task)
	return &ProcessResult{Session: sess, Validation: verdict}, nil
}

// saveOutcome writes the session status and the user's onboarding flag together.
func (s *Service) saveOutcome(ctx context.Context, sess *types.OnboardingSession) error {
	return s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sess.Status == types.SessionCompleted {
			if err := s.deps.Users.MarkOnboardingComplete(ctx, tx, sess.UserID); err != nil {
				return fmt.Errorf("mark onboarding complete: %w", err)
			}
		}
		if err := s.deps.Sessions.Save(ctx, tx, sess); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		return nil
	})
}

// runPipeline covers transcription through event context; any error it
// returns fails the session.
func (s *Service) runPipeline(ctx context.Context, sess *types.OnboardingSession, source func(context.Context) (string, error)) (*types.Profile, profile.Document, validation.Result, error) {
	var text string
	err := s.step(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, err = source(ctx)
		return err
	})
	if err != nil {
		return nil, profile.Document{}, validation.Result{}, err
	}

	var (
		row *types.Profile
		doc profile.Document
	)
	err = s.step(ctx, "apply_update", func(ctx context.Context) error {
		var err error
		row, doc, err = s.deps.Profiles.ApplyUpdate(ctx, sess.UserID, text)
		return err
	})
	if err != nil {
		return nil, profile.Document{}, validation.Result{}, err
	}

	verdict := s.deps.Validator.ValidateDocument(&doc)
	if err := s.deps.Profiles.RecordCompleteness(ctx, row.ID, verdict.CompletenessScore); err != nil {
		s.log.Warn("Failed to record profile completeness", "profile_id", row.ID, "error", err)
	}

	if sess.EventID != nil {
		_ = s.step(ctx, "event_context", func(ctx context.Context) error {
			if err := s.updateEventContext(ctx, sess, text, verdict); err != nil {
				s.log.Warn("Event context update failed; session status unaffected",
					"session_id", sess.ID, "event_id", *sess.EventID, "error", err)
				return err
			}
			return nil
		})
	}
	return row, doc, verdict, nil
}

func (s *Service) updateEventContext(ctx context.Context, sess *types.OnboardingSession, text string, verdict validation.Result) error {
	part, err := s.deps.Participations.Ensure(ctx, nil, sess.UserID, *sess.EventID)
	if err != nil {
		return fmt.Errorf("ensure participation: %w", err)
	}
	current, err := part.Context()
	if err != nil {
		return fmt.Errorf("decode participation context: %w", err)
	}
	updates, err := s.deps.EventExtractor.ExtractEventContext(ctx, text, *sess.EventID)
	if err != nil {
		return err
	}
	if err := part.SetContext(extraction.MergeEventContext(current, updates)); err != nil {
		return fmt.Errorf("encode participation context: %w", err)
	}
	part.CompletenessScore = verdict.CompletenessScore
	part.OnboardingID = &sess.ID
	if err := s.deps.Participations.UpdateContext(ctx, nil, part); err != nil {
		return fmt.Errorf("persist participation context: %w", err)
	}
	sess.ParticipationID = &part.ID
	return nil
}

func (s *Service) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "onboarding."+name)
	start := time.Now()
	err := fn(ctx)
	observability.Current().ObserveOnboardingStep(name, err, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

// markFailed persists FAILED best-effort; the caller still returns cause.
func (s *Service) markFailed(ctx context.Context, sess *types.OnboardingSession, cause error) {
	sess.Status = types.SessionFailed
	observability.Current().ObserveOnboardingOutcome(string(types.SessionFailed))
	s.log.Warn("Onboarding session failed", "session_id", sess.ID, "user_id", sess.UserID, "error", cause)
	if err := s.deps.Sessions.Save(context.WithoutCancel(ctx), nil, sess); err != nil {
		s.log.Error("Failed to persist FAILED session status", "session_id", sess.ID, "error", err)
	}
}

func (s *Service) lockUser(ctx context.Context, userID uuid.UUID) (func(), error) {
	release, err := s.deps.Locker.Lock(ctx, "onboarding:user:"+userID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire user lock: %w", err)
	}
	return release, nil
}
