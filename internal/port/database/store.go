// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/domain/order"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/domain/reward"
)

// Store is the port interface for database operations.
// Lookups of missing rows return an error wrapping domain.ErrNotFound.
type Store interface {
	// Profiles
	GetProfile(ctx context.Context, id string) (*profile.Profile, error)
	CreateProfile(ctx context.Context, p *profile.Profile) error
	UpdateProfile(ctx context.Context, p *profile.Profile) error
	SetAvatar(ctx context.Context, id, avatarURL string) error
	TopProfiles(ctx context.Context, role profile.Role, limit int) ([]profile.Profile, error)

	// Donations
	ListDonations(ctx context.Context, status donation.Status) ([]donation.Donation, error)
	ListDonationsByLister(ctx context.Context, listerID string) ([]donation.Donation, error)
	GetDonation(ctx context.Context, id string) (*donation.Donation, error)
	CreateDonation(ctx context.Context, d *donation.Donation) error
	UpdateDonation(ctx context.Context, d *donation.Donation) error
	SetDonationImage(ctx context.Context, id, imageURL string) error
	DeleteDonation(ctx context.Context, id string) error

	// Orders
	// ReserveDonation inserts o and flips its donation to Reserved atomically.
	// A donation that is no longer Available yields domain.ErrConflict.
	ReserveDonation(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrdersByReceiver(ctx context.Context, receiverID string) ([]order.Order, error)

	// Power coins
	// ApplyTransaction records tx and adjusts the balance in one step,
	// returning the new balance. A spend exceeding the balance yields
	// domain.ErrConflict and changes nothing.
	ApplyTransaction(ctx context.Context, tx *reward.Transaction) (int, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]reward.Transaction, error)
}
