package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// UploadTarget is a time-limited location a client can write audio bytes to
// directly.
type UploadTarget struct {
	URL         string            `json:"upload_url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	StorageKey  string            `json:"storage_key"`
	ContentType string            `json:"content_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

type AudioBucket interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*UploadTarget, error)
	Delete(ctx context.Context, key string) error
	// URI is the gs:// address of key, as consumed by speech recognition.
	URI(key string) string
	Close() error
}

type audioBucket struct {
	log          *logger.Logger
	client       *storage.Client
	bucket       string
	mode         ObjectStorageMode
	emulatorHost string
	now          func() time.Time
}

func NewAudioBucket(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (AudioBucket, error) {
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "AudioBucket")

	client, err := newStorageClientForMode(ctxutil.Default(ctx), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
		"bucket", cfg.Bucket,
	)
	return &audioBucket{
		log:          serviceLog,
		client:       client,
		bucket:       cfg.Bucket,
		mode:         cfg.Mode,
		emulatorHost: strings.TrimRight(cfg.EmulatorHost, "/"),
		now:          time.Now,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptions(cfg.Credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func (b *audioBucket) Close() error { return b.client.Close() }

func (b *audioBucket) URI(key string) string {
	return "gs://" + b.bucket + "/" + strings.TrimLeft(key, "/")
}

func (b *audioBucket) PresignUpload(_ context.Context, key, contentType string, ttl time.Duration) (*UploadTarget, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, fmt.Errorf("presign upload: key required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	expires := b.now().Add(ttl).UTC()
	target := &UploadTarget{
		StorageKey:  key,
		ContentType: contentType,
		ExpiresAt:   expires,
		Headers:     map[string]string{"Content-Type": contentType},
	}

	if b.mode == ObjectStorageModeGCSEmulator {
		target.Method = http.MethodPost
		target.URL = emulatorUploadURL(b.emulatorHost, b.bucket, key)
		return target, nil
	}

	signed, err := b.client.Bucket(b.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     expires,
	})
	if err != nil {
		return nil, fmt.Errorf("sign upload url for %s: %w", key, err)
	}
	target.Method = http.MethodPut
	target.URL = signed
	return target, nil
}

func (b *audioBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Second)
	defer cancel()
	err := b.client.Bucket(b.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func emulatorUploadURL(host, bucket, key string) string {
	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		strings.TrimRight(host, "/"), url.PathEscape(bucket), url.QueryEscape(key))
}
