package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	fsotel "github.com/Strob0t/foodshare/internal/adapter/otel"
	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/port/broadcast"
	"github.com/Strob0t/foodshare/internal/port/database"
)

// DonationService handles donation listings.
type DonationService struct {
	store   database.Store
	uploads *UploadService
	hub     broadcast.Broadcaster
	metrics *fsotel.Metrics
}

// NewDonationService creates a new DonationService.
func NewDonationService(store database.Store, uploads *UploadService, hub broadcast.Broadcaster) *DonationService {
	return &DonationService{store: store, uploads: uploads, hub: hub}
}

// SetMetrics enables metric recording.
func (s *DonationService) SetMetrics(m *fsotel.Metrics) {
	s.metrics = m
}

// List returns donations newest first. An empty status lists all of them.
func (s *DonationService) List(ctx context.Context, status donation.Status) ([]donation.Donation, error) {
	switch status {
	case "", donation.StatusAvailable, donation.StatusReserved:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.store.ListDonations(ctx, status)
}

// ListByLister returns the donations listed by one donor.
func (s *DonationService) ListByLister(ctx context.Context, listerID string) ([]donation.Donation, error) {
	return s.store.ListDonationsByLister(ctx, listerID)
}

// Get returns a donation by ID.
func (s *DonationService) Get(ctx context.Context, id string) (*donation.Donation, error) {
	return s.store.GetDonation(ctx, id)
}

// Create lists a new available donation for listerID.
func (s *DonationService) Create(ctx context.Context, listerID string, req *donation.CreateRequest) (*donation.Donation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	d := donation.New(listerID, req)
	if err := s.store.CreateDonation(ctx, &d); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DonationsCreated.Add(ctx, 1)
	}
	s.hub.BroadcastEvent(ctx, ws.EventDonationCreated, d)
	slog.InfoContext(ctx, "donation created", "donation_id", d.ID, "lister_id", listerID)
	return &d, nil
}

// Update edits a listing. Only the lister may edit, and only while the
// donation is still available.
func (s *DonationService) Update(ctx context.Context, userID, id string, req *donation.UpdateRequest) (*donation.Donation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !d.Editable() {
		return nil, fmt.Errorf("donation %s is %s: %w", id, d.Status, domain.ErrConflict)
	}
	req.Apply(d)
	if err := s.store.UpdateDonation(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a listing and its stored image.
func (s *DonationService) Delete(ctx context.Context, userID, id string) error {
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if d.ImageURL != "" {
		if err := s.uploads.RemoveURL(ctx, userID, BucketDonations, d.ImageURL); err != nil {
			return fmt.Errorf("remove donation image: %w", err)
		}
	}
	return s.store.DeleteDonation(ctx, id)
}

// AttachImage uploads a listing photo and replaces the previous one.
func (s *DonationService) AttachImage(ctx context.Context, userID, id, filename string, body io.Reader) (*donation.Donation, error) {
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	up, err := s.uploads.Upload(ctx, userID, BucketDonations, filename, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDonationImage(ctx, id, up.URL); err != nil {
		_ = s.uploads.Remove(ctx, userID, BucketDonations, up.Path)
		return nil, err
	}

	if d.ImageURL != "" {
		if err := s.uploads.RemoveURL(ctx, userID, BucketDonations, d.ImageURL); err != nil {
			slog.WarnContext(ctx, "remove old donation image", "donation_id", id, "error", err)
		}
	}
	d.ImageURL = up.URL
	return d, nil
}

// owned loads a donation and checks that userID listed it.
func (s *DonationService) owned(ctx context.Context, userID, id string) (*donation.Donation, error) {
	d, err := s.store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ListerID != userID {
		return nil, fmt.Errorf("donation %s: %w", id, domain.ErrForbidden)
	}
	return d, nil
}
