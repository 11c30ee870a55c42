package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/events"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/modules/embedding"
	"github.com/yungbote/intromatch-backend/internal/modules/validation"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
)

type Transcriber interface {
	TranscribeAudio(ctx context.Context, storageKey string) (string, error)
}

type ProfileStore interface {
	EnsureForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error)
	ApplyUpdate(ctx context.Context, userID uuid.UUID, transcript string) (*types.Profile, profile.Document, error)
	RecordCompleteness(ctx context.Context, profileID uuid.UUID, score float64) error
}

type Validator interface {
	Validate(doc map[string]any) validation.Result
	ValidateDocument(doc *profile.Document) validation.Result
}

type EventContextExtractor interface {
	ExtractEventContext(ctx context.Context, text string, eventID uuid.UUID) (events.ContextDocument, error)
}

type UploadSigner interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*gcp.UploadTarget, error)
}

type EmbedDispatcher interface {
	Enqueue(t embedding.Task) bool
}

type Config struct {
	UploadTTL  time.Duration
	SessionTTL time.Duration
}

func DefaultConfig() Config {
	return Config{UploadTTL: time.Hour, SessionTTL: 24 * time.Hour}
}
