package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type SpeechJobState string

const (
	SpeechJobQueued     SpeechJobState = "QUEUED"
	SpeechJobInProgress SpeechJobState = "IN_PROGRESS"
	SpeechJobCompleted  SpeechJobState = "COMPLETED"
	SpeechJobFailed     SpeechJobState = "FAILED"
)

// SpeechJob is a snapshot of a long-running recognize operation.
type SpeechJob struct {
	Name       string
	State      SpeechJobState
	Progress   int
	Reason     string
	Transcript string
}

// ErrSpeechJobNotFound is returned by Poll when the operation name is unknown.
var ErrSpeechJobNotFound = fmt.Errorf("speech job not found")

type Speech interface {
	Start(ctx context.Context, gcsURI string) (string, error)
	Poll(ctx context.Context, name string) (*SpeechJob, error)
	Close() error
}

type SpeechConfig struct {
	Credentials                string
	LanguageCode               string
	Model                      string
	EnableAutomaticPunctuation bool
	SampleRateHertz            int
	Encoding                   speechpb.RecognitionConfig_AudioEncoding
}

type speechService struct {
	log    *logger.Logger
	client *speech.Client
	cfg    SpeechConfig
}

func NewSpeech(ctx context.Context, log *logger.Logger, cfg SpeechConfig) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(ctxutil.Default(ctx), ClientOptions(cfg.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &speechService{
		log:    log.With("service", "gcp.Speech"),
		client: c,
		cfg:    cfg,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) Start(ctx context.Context, gcsURI string) (string, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: buildRecognitionConfig(gcsURI, s.cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI}},
	}
	op, err := s.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	s.log.Debug("Speech job started", "job", op.Name(), "uri", gcsURI)
	return op.Name(), nil
}

func (s *speechService) Poll(ctx context.Context, name string) (*SpeechJob, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Second)
	defer cancel()

	op := s.client.LongRunningRecognizeOperation(name)
	resp, err := op.Poll(ctx)
	if err != nil {
		if op.Done() {
			return &SpeechJob{Name: name, State: SpeechJobFailed, Reason: err.Error()}, nil
		}
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrSpeechJobNotFound, name)
		}
		return nil, fmt.Errorf("poll speech job %s: %w", name, err)
	}
	if !op.Done() {
		job := &SpeechJob{Name: name, State: SpeechJobQueued}
		if md, mdErr := op.Metadata(); mdErr == nil && md != nil && md.GetProgressPercent() > 0 {
			job.State = SpeechJobInProgress
			job.Progress = int(md.GetProgressPercent())
		}
		return job, nil
	}
	return &SpeechJob{
		Name:       name,
		State:      SpeechJobCompleted,
		Progress:   100,
		Transcript: transcriptFromResponse(resp),
	}, nil
}

func buildRecognitionConfig(gcsURI string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	enc := cfg.Encoding
	if enc == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		enc = inferSpeechEncoding(gcsURI)
	}
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
		Encoding:                   enc,
	}
	if cfg.SampleRateHertz > 0 {
		rc.SampleRateHertz = int32(cfg.SampleRateHertz)
	}
	return rc
}

func inferSpeechEncoding(uri string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// transcriptFromResponse joins the top alternative of every result.
func transcriptFromResponse(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 || alts[0] == nil {
			continue
		}
		txt := strings.TrimSpace(alts[0].GetTranscript())
		if txt == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(txt)
	}
	return full.String()
}
