package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/reward"
)

// ApplyTransaction records tx and moves the balance by tx.Delta() in one
// transaction. The balance guard lives in the UPDATE so concurrent spends
// cannot overdraw.
func (s *Store) ApplyTransaction(ctx context.Context, t *reward.Transaction) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("apply transaction: %w: %s", domain.ErrValidation, err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO coin_transactions (id, user_id, kind, amount, reason, reference)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		t.ID, t.UserID, t.Kind, t.Amount, t.Reason, t.Reference,
	).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("apply transaction %s: %w", t.Reference, reward.ErrDuplicateTransaction)
		}
		return 0, conflictWrap(err, "record transaction for %s", t.UserID)
	}

	var balance int
	err = tx.QueryRow(ctx,
		`UPDATE profiles SET power_coins = power_coins + $2, updated_at = now()
		 WHERE id = $1 AND power_coins + $2 >= 0
		 RETURNING power_coins`,
		t.UserID, t.Delta(),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// The insert above proved the profile exists.
		return 0, fmt.Errorf("apply transaction: insufficient power coins: %w", domain.ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("update balance for %s: %w", t.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return balance, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]reward.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, amount, reason, reference, created_at
		 FROM coin_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []reward.Transaction
	for rows.Next() {
		var t reward.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Reason, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return orEmpty(out), rows.Err()
}
