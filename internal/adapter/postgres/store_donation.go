package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/foodshare/internal/domain/donation"
)

const donationSelect = `SELECT d.id, d.lister_id, COALESCE(p.name, ''), d.title, d.description, d.serves,
	d.location, d.pickup_time, d.image_url, d.image_hint, d.status, d.created_at, d.updated_at
	FROM donations d LEFT JOIN profiles p ON p.id = d.lister_id`

func scanDonation(row scannable) (donation.Donation, error) {
	var d donation.Donation
	err := row.Scan(&d.ID, &d.ListerID, &d.ListerName, &d.Title, &d.Description, &d.Serves,
		&d.Location, &d.PickupTime, &d.ImageURL, &d.ImageHint, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func collectDonations(rows pgx.Rows) ([]donation.Donation, error) {
	defer rows.Close()
	var out []donation.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	return orEmpty(out), rows.Err()
}

// ListDonations returns donations with the given status, newest first.
// An empty status lists every donation.
func (s *Store) ListDonations(ctx context.Context, status donation.Status) ([]donation.Donation, error) {
	rows, err := s.pool.Query(ctx,
		donationSelect+` WHERE ($1 = '' OR d.status = $1) ORDER BY d.created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return collectDonations(rows)
}

func (s *Store) ListDonationsByLister(ctx context.Context, listerID string) ([]donation.Donation, error) {
	rows, err := s.pool.Query(ctx,
		donationSelect+` WHERE d.lister_id = $1 ORDER BY d.created_at DESC`, listerID)
	if err != nil {
		return nil, fmt.Errorf("list donations by lister %s: %w", listerID, err)
	}
	return collectDonations(rows)
}

func (s *Store) GetDonation(ctx context.Context, id string) (*donation.Donation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFoundWrap(pgx.ErrNoRows, "get donation %s", id)
	}
	d, err := scanDonation(s.pool.QueryRow(ctx, donationSelect+` WHERE d.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get donation %s", id)
	}
	return &d, nil
}

func (s *Store) CreateDonation(ctx context.Context, d *donation.Donation) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO donations (id, lister_id, title, description, serves, location, pickup_time, image_url, image_hint, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		d.ID, d.ListerID, d.Title, d.Description, d.Serves, d.Location, d.PickupTime,
		d.ImageURL, d.ImageHint, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create donation")
	}
	return nil
}

// UpdateDonation writes the editable fields. The status is not touched;
// reservations go through ReserveDonation.
func (s *Store) UpdateDonation(ctx context.Context, d *donation.Donation) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE donations SET title = $2, description = $3, serves = $4, location = $5,
		 pickup_time = $6, updated_at = now()
		 WHERE id = $1 RETURNING updated_at`,
		d.ID, d.Title, d.Description, d.Serves, d.Location, d.PickupTime,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update donation %s", d.ID)
	}
	return nil
}

func (s *Store) SetDonationImage(ctx context.Context, id, imageURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE donations SET image_url = $2, updated_at = now() WHERE id = $1`, id, imageURL)
	return execExpectOne(tag, err, "set donation image %s", id)
}

func (s *Store) DeleteDonation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM donations WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete donation %s", id)
}
