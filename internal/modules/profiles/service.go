// Package profiles owns profile documents: creation and transcript-driven
// updates through extraction and merge.
package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type Extractor interface {
	ExtractProfile(ctx context.Context, text string) (profile.Document, error)
	Merge(ctx context.Context, current, updates profile.Document) (profile.Document, error)
}

type Deps struct {
	Log       *logger.Logger
	Profiles  repos.ProfileRepo
	Extractor Extractor
}

type Service struct {
	log       *logger.Logger
	profiles  repos.ProfileRepo
	extractor Extractor
}

func New(deps Deps) (*Service, error) {
	if deps.Log == nil || deps.Profiles == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("profiles: missing deps")
	}
	return &Service{
		log:       deps.Log.With("service", "ProfileService"),
		profiles:  deps.Profiles,
		extractor: deps.Extractor,
	}, nil
}

// GetByUser returns nil when the user has no profile yet.
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	return s.profiles.GetByUserID(ctx, nil, userID)
}

// CreateInitial creates an empty profile: collections empty, scalars null.
func (s *Service) CreateInitial(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, &types.ValidationError{Field: "user_id", Reason: "required"}
	}
	p := &types.Profile{UserID: userID}
	if err := p.SetDocument(profile.NewDocument()); err != nil {
		return nil, fmt.Errorf("encode initial profile: %w", err)
	}
	created, err := s.profiles.Create(ctx, tx, p)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.Info("Initial profile created", "user_id", userID, "profile_id", created.ID)
	return created, nil
}

// EnsureForUser returns the user's profile, creating the initial one if needed.
func (s *Service) EnsureForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p != nil {
		return p, nil
	}
	return s.CreateInitial(ctx, tx, userID)
}

// ApplyUpdate extracts a document from the accumulated raw input plus the new
// transcript, merges it into the stored profile and persists the result.
func (s *Service) ApplyUpdate(ctx context.Context, userID uuid.UUID, transcript string) (*types.Profile, profile.Document, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, profile.Document{}, &types.ValidationError{Field: "transcript", Reason: "required"}
	}
	row, err := s.EnsureForUser(ctx, nil, userID)
	if err != nil {
		return nil, profile.Document{}, err
	}
	current, err := row.Document()
	if err != nil {
		return nil, profile.Document{}, fmt.Errorf("decode stored profile %s: %w", row.ID, err)
	}

	combined := current
	combined.AppendRawInput(transcript)

	extracted, err := s.extractor.ExtractProfile(ctx, combined.RawInput)
	if err != nil {
		return nil, profile.Document{}, err
	}
	merged, err := s.extractor.Merge(ctx, current, extracted)
	if err != nil {
		return nil, profile.Document{}, err
	}
	// raw_input only ever grows, whatever the merge produced.
	merged.RawInput = combined.RawInput

	if err := row.SetDocument(merged); err != nil {
		return nil, profile.Document{}, fmt.Errorf("encode merged profile: %w", err)
	}
	if err := s.profiles.UpdateDocument(ctx, nil, row); err != nil {
		return nil, profile.Document{}, fmt.Errorf("persist profile %s: %w", row.ID, err)
	}
	s.log.Info("Profile updated from transcript", "user_id", userID, "profile_id", row.ID,
		"raw_input_chars", len(merged.RawInput))
	return row, merged, nil
}

func (s *Service) RecordCompleteness(ctx context.Context, profileID uuid.UUID, score float64) error {
	return s.profiles.UpdateCompleteness(ctx, nil, profileID, score)
}
