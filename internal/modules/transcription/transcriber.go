// Package transcription turns stored audio into plain text.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/httpx"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Transcriber is what the onboarding pipeline depends on.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, storageKey string) (string, error)
}

type Config struct {
	PollAttempts int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{PollAttempts: 30, PollInterval: 10 * time.Second}
}

type AdapterDeps struct {
	Log      *logger.Logger
	Provider Provider
	Config   Config
	// Sleep defaults to httpx.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Adapter drives a Provider job from start to transcript.
type Adapter struct {
	log      *logger.Logger
	provider Provider
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewAdapter(deps AdapterDeps) (*Adapter, error) {
	if deps.Log == nil || deps.Provider == nil {
		return nil, fmt.Errorf("transcription adapter: missing deps")
	}
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = def.PollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = httpx.Sleep
	}
	return &Adapter{
		log:      deps.Log.With("service", "TranscriptionAdapter"),
		provider: deps.Provider,
		cfg:      cfg,
		sleep:    sleep,
	}, nil
}

func (a *Adapter) TranscribeAudio(ctx context.Context, storageKey string) (text string, err error) {
	ctx, span := observability.StartSpan(ctx, "transcription.transcribe_audio", attribute.String("storage_key", storageKey))
	defer func() { observability.EndSpan(span, err) }()

	key := strings.TrimSpace(storageKey)
	if key == "" {
		return "", &types.ValidationError{Field: "storage_key", Reason: "required"}
	}

	jobID, err := a.provider.StartJob(ctx, key)
	if err != nil {
		return "", asTranscriptionError("", err)
	}
	a.log.Info("Transcription job started", "job_id", jobID, "storage_key", key)

	metrics := observability.Current()
	for attempt := 1; attempt <= a.cfg.PollAttempts; attempt++ {
		st, err := a.provider.JobStatus(ctx, jobID)
		if err != nil {
			return "", asTranscriptionError(jobID, err)
		}
		metrics.IncTranscriptionPoll(string(st.State))

		switch st.State {
		case JobCompleted:
			raw, err := a.provider.FetchResult(ctx, jobID)
			if err != nil {
				return "", asTranscriptionError(jobID, err)
			}
			text := strings.TrimSpace(raw)
			if text == "" {
				return "", &types.TranscriptionFailedError{JobID: jobID, Reason: "no speech recognized"}
			}
			a.log.Info("Transcription completed", "job_id", jobID, "chars", len(text))
			return text, nil
		case JobFailed:
			reason := st.Reason
			if reason == "" {
				reason = "provider reported failure"
			}
			return "", &types.TranscriptionFailedError{JobID: jobID, Reason: reason}
		case JobQueued, JobInProgress:
			a.log.Debug("Transcription job pending", "job_id", jobID, "state", string(st.State),
				"attempt", attempt, "max_attempts", a.cfg.PollAttempts)
		default:
			return "", &types.TranscriptionFailedError{JobID: jobID, Reason: fmt.Sprintf("unknown job state %q", st.State)}
		}

		if attempt == a.cfg.PollAttempts {
			break
		}
		if err := a.sleep(ctx, a.cfg.PollInterval); err != nil {
			return "", &types.TranscriptionFailedError{JobID: jobID, Reason: "polling interrupted", Cause: err}
		}
	}
	return "", &types.TranscriptionFailedError{
		JobID:  jobID,
		Reason: fmt.Sprintf("did not complete after %d attempts", a.cfg.PollAttempts),
	}
}

// asTranscriptionError keeps job-not-found and already-typed failures and wraps
// anything else.
func asTranscriptionError(jobID string, err error) error {
	var notFound *types.TranscriptionJobNotFoundError
	if errors.As(err, &notFound) {
		return err
	}
	var failed *types.TranscriptionFailedError
	if errors.As(err, &failed) {
		return err
	}
	return &types.TranscriptionFailedError{JobID: jobID, Cause: err}
}
