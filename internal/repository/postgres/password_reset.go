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

// PasswordResetRepository implements repository.PasswordResetRepository using
// PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a PostgreSQL-backed password reset
// repository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create inserts a new reset token record.
func (r *PasswordResetRepository) Create(ctx context.Context, p *domain.PasswordReset) error {
	query := `
		INSERT INTO password_resets (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.TokenHash,
		p.ExpiresAt,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}

	return nil
}

// GetByID retrieves a reset token record by ID.
func (r *PasswordResetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PasswordReset, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE id = $1`

	var p domain.PasswordReset
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.AccountID,
		&p.TokenHash,
		&p.ExpiresAt,
		&p.UsedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan password reset: %w", err)
	}

	return &p, nil
}

// MarkUsed consumes the reset token only if it is still unused, returning
// true when this call performed the consumption.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE password_resets SET used_at = $1 WHERE id = $2 AND used_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark password reset used: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// DeleteExpired removes reset tokens whose window closed before the cutoff.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM password_resets WHERE expires_at < $1`

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}

	return ct.RowsAffected(), nil
}
