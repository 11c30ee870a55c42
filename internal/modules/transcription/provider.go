package transcription

import (
	"context"
	"errors"
	"fmt"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
)

type JobState string

const (
	JobQueued     JobState = "QUEUED"
	JobInProgress JobState = "IN_PROGRESS"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
)

// JobStatus is one observation of a transcription job. Reason is set when the
// job failed.
type JobStatus struct {
	State  JobState
	Reason string
}

// Provider is an asynchronous speech-to-text backend addressed by storage key.
// JobStatus and FetchResult return *domain.TranscriptionJobNotFoundError for
// unknown job ids.
type Provider interface {
	StartJob(ctx context.Context, storageKey string) (string, error)
	JobStatus(ctx context.Context, jobID string) (JobStatus, error)
	FetchResult(ctx context.Context, jobID string) (string, error)
}

// speechProvider runs long-running recognize jobs against audio already in
// the bucket.
type speechProvider struct {
	speech gcp.Speech
	bucket gcp.AudioBucket
}

func NewSpeechProvider(speech gcp.Speech, bucket gcp.AudioBucket) Provider {
	return &speechProvider{speech: speech, bucket: bucket}
}

func (p *speechProvider) StartJob(ctx context.Context, storageKey string) (string, error) {
	name, err := p.speech.Start(ctx, p.bucket.URI(storageKey))
	if err != nil {
		return "", &types.TranscriptionFailedError{Reason: "start job", Cause: err}
	}
	return name, nil
}

func (p *speechProvider) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	job, err := p.poll(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	return JobStatus{State: JobState(job.State), Reason: job.Reason}, nil
}

func (p *speechProvider) FetchResult(ctx context.Context, jobID string) (string, error) {
	job, err := p.poll(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.State != gcp.SpeechJobCompleted {
		return "", &types.TranscriptionFailedError{JobID: jobID, Reason: fmt.Sprintf("result requested in state %s", job.State)}
	}
	return job.Transcript, nil
}

func (p *speechProvider) poll(ctx context.Context, jobID string) (*gcp.SpeechJob, error) {
	job, err := p.speech.Poll(ctx, jobID)
	if err != nil {
		if errors.Is(err, gcp.ErrSpeechJobNotFound) {
			return nil, &types.TranscriptionJobNotFoundError{JobID: jobID}
		}
		return nil, &types.TranscriptionFailedError{JobID: jobID, Reason: "poll job", Cause: err}
	}
	if job == nil {
		return nil, &types.TranscriptionFailedError{JobID: jobID, Reason: "empty job snapshot"}
	}
	return job, nil
}
