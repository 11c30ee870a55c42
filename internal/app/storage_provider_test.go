package app

import (
	"context"
	"errors"
	"testing"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		name string
		src  error
		want StorageProviderBootstrapErrorCode
	}{
		{"invalid mode", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidMode}, StorageProviderBootstrapErrorInvalidMode},
		{"missing emulator host", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingEmulatorHost}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{"invalid emulator host", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidEmulatorHost}, StorageProviderBootstrapErrorInvalidEmulatorHost},
		{"connect failed", errors.New("dial tcp: connection refused"), StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStorageProviderBootstrapError(gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator}, tc.src)
			var got *StorageProviderBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if !errors.Is(err, types.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration")
			}
		})
	}
}

func TestResolveAudioBucketWithoutBucketDisablesUploads(t *testing.T) {
	bucket, err := resolveAudioBucket(context.Background(), logger.Nop(), Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := bucket.PresignUpload(context.Background(), "k", "audio/webm", 0); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("presign: want ErrConfiguration got=%v", err)
	}
}

func TestResolveAudioBucketRejectsBadMode(t *testing.T) {
	cfg := Config{Storage: gcp.ObjectStorageConfig{Bucket: "audio"}, StorageModeRaw: "s3"}
	_, err := resolveAudioBucket(context.Background(), logger.Nop(), cfg)
	if storageProviderBootstrapErrorCode(err) != StorageProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%v", StorageProviderBootstrapErrorInvalidMode, err)
	}
}

func TestResolveAudioBucketEmulatorFallback(t *testing.T) {
	orig := newAudioBucket
	defer func() { newAudioBucket = orig }()

	var seen gcp.ObjectStorageConfig
	newAudioBucket = func(_ context.Context, _ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.AudioBucket, error) {
		seen = cfg
		return unconfiguredBucket{}, nil
	}
	cfg := Config{Storage: gcp.ObjectStorageConfig{Bucket: "audio", EmulatorHost: "http://fake-gcs:4443"}}
	if _, err := resolveAudioBucket(context.Background(), logger.Nop(), cfg); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seen.Mode != gcp.ObjectStorageModeGCSEmulator || !seen.CompatibilityFallback {
		t.Fatalf("mode: want=%q fallback=true got=%q fallback=%v", gcp.ObjectStorageModeGCSEmulator, seen.Mode, seen.CompatibilityFallback)
	}
}

func TestResolveAudioBucketConnectFailure(t *testing.T) {
	orig := newAudioBucket
	defer func() { newAudioBucket = orig }()

	newAudioBucket = func(context.Context, *logger.Logger, gcp.ObjectStorageConfig) (gcp.AudioBucket, error) {
		return nil, errors.New("no credentials")
	}
	cfg := Config{Storage: gcp.ObjectStorageConfig{Bucket: "audio"}, StorageModeRaw: "gcs"}
	_, err := resolveAudioBucket(context.Background(), logger.Nop(), cfg)
	if storageProviderBootstrapErrorCode(err) != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%v", StorageProviderBootstrapErrorConnectFailed, err)
	}
}
