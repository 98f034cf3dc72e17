package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// ChallengeRepository implements repository.ChallengeRepository using
// PostgreSQL.
type ChallengeRepository struct {
	db DB
}

// NewChallengeRepository creates a PostgreSQL-backed challenge repository.
func NewChallengeRepository(db DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Replace drops any unconsumed challenge for the account and inserts the new
// one in a single transaction, so each login attempt supersedes the previous
// pending challenge.
func (r *ChallengeRepository) Replace(ctx context.Context, c *domain.TwoFactorChallenge) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`DELETE FROM two_factor_challenges WHERE account_id = $1 AND consumed_at IS NULL`,
		c.AccountID,
	)
	if err != nil {
		return fmt.Errorf("delete pending challenges: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO two_factor_challenges (id, account_id, code_hash, attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID,
		c.AccountID,
		c.CodeHash,
		c.Attempts,
		c.ExpiresAt,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TwoFactorChallenge, error) {
	query := `
		SELECT id, account_id, code_hash, attempts, expires_at, consumed_at, created_at
		FROM two_factor_challenges
		WHERE id = $1`

	var c domain.TwoFactorChallenge
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.AccountID,
		&c.CodeHash,
		&c.Attempts,
		&c.ExpiresAt,
		&c.ConsumedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}

	return &c, nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the new
// count. Concurrent verifications serialize on the row update, so the ceiling
// cannot be overshot by racing requests.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE two_factor_challenges
		SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL
		RETURNING attempts`

	var attempts int
	err := r.db.QueryRow(ctx, query, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("increment challenge attempts: %w", err)
	}

	return attempts, nil
}

// Consume marks the challenge redeemed only if it is still unconsumed,
// returning true when this call performed the consumption.
func (r *ChallengeRepository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE two_factor_challenges SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// DeleteExpired removes challenges whose window closed before the cutoff.
func (r *ChallengeRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM two_factor_challenges WHERE expires_at < $1`

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}

	return ct.RowsAffected(), nil
}
