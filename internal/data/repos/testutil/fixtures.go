package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, externalID string) *types.User {
	tb.Helper()
	u := &types.User{ID: uuid.New()}
	if externalID != "" {
		u.ExternalID = &externalID
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, doc profile.Document) *types.Profile {
	tb.Helper()
	p := &types.Profile{ID: uuid.New(), UserID: userID}
	if err := p.SetDocument(doc); err != nil {
		tb.Fatalf("seed profile doc: %v", err)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Event {
	tb.Helper()
	e := &types.Event{ID: uuid.New(), Name: name}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed event: %v", err)
	}
	return e
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, profileID uuid.UUID, eventID *uuid.UUID) *types.OnboardingSession {
	tb.Helper()
	s := &types.OnboardingSession{
		ID:        uuid.New(),
		UserID:    userID,
		ProfileID: profileID,
		EventID:   eventID,
		Status:    types.SessionAwaitingAudio,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func Str(v string) *string { return &v }

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
