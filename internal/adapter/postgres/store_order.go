package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/donation"
	"github.com/Strob0t/foodshare/internal/domain/order"
)

const orderSelect = `SELECT o.id, o.donation_id, o.receiver_id, o.status, o.pickup_method, o.delivery_fee, o.created_at,
	d.title, d.location, d.pickup_time, d.image_url, d.image_hint, d.lister_id, COALESCE(p.name, '')
	FROM orders o
	JOIN donations d ON d.id = o.donation_id
	LEFT JOIN profiles p ON p.id = d.lister_id`

func scanOrder(row scannable) (order.Order, error) {
	var o order.Order
	var d donation.Donation
	err := row.Scan(&o.ID, &o.DonationID, &o.ReceiverID, &o.Status, &o.PickupMethod, &o.DeliveryFee, &o.CreatedAt,
		&d.Title, &d.Location, &d.PickupTime, &d.ImageURL, &d.ImageHint, &d.ListerID, &d.ListerName)
	if err != nil {
		return o, err
	}
	d.ID = o.DonationID
	d.Status = donation.StatusReserved
	o.Donation = &d
	return o, nil
}

// ReserveDonation claims an available donation and records the order in one
// transaction, so a donation never ends up reserved without an order.
func (s *Store) ReserveDonation(ctx context.Context, o *order.Order) error {
	if _, err := uuid.Parse(o.DonationID); err != nil {
		return fmt.Errorf("reserve donation %s: %w", o.DonationID, domain.ErrNotFound)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE donations SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		o.DonationID, donation.StatusReserved, donation.StatusAvailable)
	if err != nil {
		return fmt.Errorf("reserve donation %s: %w", o.DonationID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM donations WHERE id = $1)`, o.DonationID).Scan(&exists); err != nil {
			return fmt.Errorf("reserve donation %s: %w", o.DonationID, err)
		}
		if !exists {
			return fmt.Errorf("reserve donation %s: %w", o.DonationID, domain.ErrNotFound)
		}
		return fmt.Errorf("reserve donation %s: already reserved: %w", o.DonationID, domain.ErrConflict)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, donation_id, receiver_id, status, pickup_method, delivery_fee)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		o.ID, o.DonationID, o.ReceiverID, o.Status, o.PickupMethod, o.DeliveryFee,
	).Scan(&o.CreatedAt)
	if err != nil {
		return conflictWrap(err, "insert order for donation %s", o.DonationID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFoundWrap(pgx.ErrNoRows, "get order %s", id)
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get order %s", id)
	}
	return &o, nil
}

func (s *Store) ListOrdersByReceiver(ctx context.Context, receiverID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, orderSelect+` WHERE o.receiver_id = $1 ORDER BY o.created_at DESC`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", receiverID, err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return orEmpty(out), rows.Err()
}
