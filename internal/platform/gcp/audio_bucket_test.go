package gcp

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

func TestEmulatorPresignUpload(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &audioBucket{
		log:          logger.Nop(),
		bucket:       "intro-audio",
		mode:         ObjectStorageModeGCSEmulator,
		emulatorHost: "http://fake-gcs:4443",
		now:          func() time.Time { return fixed },
	}
	target, err := b.PresignUpload(context.Background(), "/onboarding/s1/initial.wav", "audio/wav", time.Hour)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	want := "http://fake-gcs:4443/upload/storage/v1/b/intro-audio/o?uploadType=media&name=onboarding%2Fs1%2Finitial.wav"
	if target.URL != want {
		t.Fatalf("url: want=%s got=%s", want, target.URL)
	}
	if target.Method != http.MethodPost || target.StorageKey != "onboarding/s1/initial.wav" {
		t.Fatalf("target: got=%+v", target)
	}
	if !target.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("expires: got=%v", target.ExpiresAt)
	}
	if b.URI("onboarding/s1/initial.wav") != "gs://intro-audio/onboarding/s1/initial.wav" {
		t.Fatalf("uri: got=%s", b.URI("onboarding/s1/initial.wav"))
	}
}

func TestPresignUploadRequiresKey(t *testing.T) {
	b := &audioBucket{log: logger.Nop(), bucket: "b", mode: ObjectStorageModeGCSEmulator, now: time.Now}
	if _, err := b.PresignUpload(context.Background(), "  ", "audio/wav", time.Minute); err == nil {
		t.Fatalf("empty key should fail")
	}
}
