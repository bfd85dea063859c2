package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/foodshare/internal/domain/profile"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Profiles ---

const profileColumns = `id, name, email, phone, address, avatar_url, role, power_coins, created_at, updated_at`

func scanProfile(row scannable) (profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.AvatarURL,
		&p.Role, &p.PowerCoins, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFoundWrap(err, "get profile %s", id)
	}
	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, name, email, phone, address, avatar_url, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING power_coins, created_at, updated_at`,
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.AvatarURL, p.Role,
	).Scan(&p.PowerCoins, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create profile %s", p.ID)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE profiles SET name = $2, phone = $3, address = $4, updated_at = now()
		 WHERE id = $1 RETURNING updated_at`,
		p.ID, p.Name, p.Phone, p.Address,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update profile %s", p.ID)
	}
	return nil
}

func (s *Store) SetAvatar(ctx context.Context, id, avatarURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET avatar_url = $2, updated_at = now() WHERE id = $1`, id, avatarURL)
	return execExpectOne(tag, err, "set avatar %s", id)
}

// TopProfiles returns the profiles of role with the most power coins.
// Ties are broken by the earlier signup.
func (s *Store) TopProfiles(ctx context.Context, role profile.Role, limit int) ([]profile.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE role = $1 ORDER BY power_coins DESC, created_at ASC LIMIT $2`, role, limit)
	if err != nil {
		return nil, fmt.Errorf("top profiles %s: %w", role, err)
	}
	defer rows.Close()

	var out []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return orEmpty(out), rows.Err()
}
