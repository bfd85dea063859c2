package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/port/database"
)

// ProfileService handles profile business logic.
type ProfileService struct {
	store   database.Store
	uploads *UploadService
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store database.Store, uploads *UploadService) *ProfileService {
	return &ProfileService{store: store, uploads: uploads}
}

// Create registers the profile of a newly signed up user.
func (s *ProfileService) Create(ctx context.Context, req *profile.CreateRequest) (*profile.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	p := profile.Profile{ID: req.ID, Name: req.Name, Email: req.Email, Role: req.Role}
	if err := s.store.CreateProfile(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns a profile by ID.
func (s *ProfileService) Get(ctx context.Context, id string) (*profile.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// GetOrCreate returns the caller's profile, creating a default one on
// first access.
func (s *ProfileService) GetOrCreate(ctx context.Context, id, email, name string, role profile.Role) (*profile.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	def := profile.Default(id, email, name)
	if role != "" {
		def.Role = role
	}
	if err := s.store.CreateProfile(ctx, &def); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with a concurrent first access.
			return s.store.GetProfile(ctx, id)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "default profile created", "profile_id", id, "role", def.Role)
	return &def, nil
}

// Update edits the caller's contact details.
func (s *ProfileService) Update(ctx context.Context, id string, req *profile.UpdateRequest) (*profile.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UploadAvatar stores a new avatar image and points the profile at it.
// The previous avatar is removed once the profile no longer references it.
func (s *ProfileService) UploadAvatar(ctx context.Context, id, filename string, body io.Reader) (*profile.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	up, err := s.uploads.Upload(ctx, id, BucketAvatars, filename, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetAvatar(ctx, id, up.URL); err != nil {
		_ = s.uploads.Remove(ctx, id, BucketAvatars, up.Path)
		return nil, err
	}

	if p.AvatarURL != "" {
		if err := s.uploads.RemoveURL(ctx, id, BucketAvatars, p.AvatarURL); err != nil {
			slog.WarnContext(ctx, "remove old avatar", "profile_id", id, "error", err)
		}
	}
	p.AvatarURL = up.URL
	return p, nil
}
