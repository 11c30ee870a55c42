package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

var newAudioBucket = gcp.NewAudioBucket

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf("object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code, e.Mode, e.EmulatorHost, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *StorageProviderBootstrapError) Is(target error) bool {
	return target == types.ErrConfiguration
}

// resolveAudioBucket returns the bucket audio uploads land in. Without a
// configured bucket name the returned bucket refuses to sign uploads, so the
// text and read paths still work in local setups.
func resolveAudioBucket(ctx context.Context, log *logger.Logger, cfg Config) (gcp.AudioBucket, error) {
	metrics := observability.Current()
	if cfg.Storage.Bucket == "" {
		log.Warn("AUDIO_GCS_BUCKET_NAME not set; audio uploads are disabled")
		metrics.ObserveProviderBootstrap("object_storage", "disabled", "success", "none")
		return unconfiguredBucket{}, nil
	}

	storageCfg, err := gcp.ResolveObjectStorageMode(cfg.Storage, cfg.StorageModeRaw)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		code := storageProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("object_storage", string(storageCfg.Mode), "error", string(code))
		log.Error("Object storage provider selection failed",
			"mode_raw", cfg.StorageModeRaw,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}

	log.Info("Selecting object storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	bucket, err := newAudioBucket(ctx, log, storageCfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		code := storageProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("object_storage", string(storageCfg.Mode), "error", string(code))
		log.Error("Object storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}
	metrics.ObserveProviderBootstrap("object_storage", string(storageCfg.Mode), "success", "none")
	return bucket, nil
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}

var errUploadsDisabled = fmt.Errorf("%w: audio bucket is not configured", types.ErrConfiguration)

type unconfiguredBucket struct{}

func (unconfiguredBucket) PresignUpload(context.Context, string, string, time.Duration) (*gcp.UploadTarget, error) {
	return nil, errUploadsDisabled
}

func (unconfiguredBucket) Delete(context.Context, string) error { return errUploadsDisabled }
func (unconfiguredBucket) URI(string) string                    { return "" }
func (unconfiguredBucket) Close() error                         { return nil }
