package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// FederatedIdentityRepository implements
// repository.FederatedIdentityRepository using PostgreSQL.
type FederatedIdentityRepository struct {
	db DB
}

// NewFederatedIdentityRepository creates a PostgreSQL-backed federated
// identity repository.
func NewFederatedIdentityRepository(db DB) *FederatedIdentityRepository {
	return &FederatedIdentityRepository{db: db}
}

// Create links an account to an external provider identity.
func (r *FederatedIdentityRepository) Create(ctx context.Context, i *domain.FederatedIdentity) error {
	query := `
		INSERT INTO federated_identities (id, account_id, provider, provider_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		i.ID,
		i.AccountID,
		i.Provider,
		i.ProviderID,
		i.Email,
		i.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("federated identity", "provider_id", i.ProviderID)
		}
		return fmt.Errorf("insert federated identity: %w", err)
	}

	return nil
}

// GetByProvider retrieves the linkage for a provider subject.
func (r *FederatedIdentityRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.FederatedIdentity, error) {
	query := `
		SELECT id, account_id, provider, provider_id, email, created_at
		FROM federated_identities
		WHERE provider = $1 AND provider_id = $2`

	var i domain.FederatedIdentity
	err := r.db.QueryRow(ctx, query, provider, providerID).Scan(
		&i.ID,
		&i.AccountID,
		&i.Provider,
		&i.ProviderID,
		&i.Email,
		&i.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan federated identity: %w", err)
	}

	return &i, nil
}

// GetByAccountID returns all provider linkages for an account.
func (r *FederatedIdentityRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*domain.FederatedIdentity, error) {
	query := `
		SELECT id, account_id, provider, provider_id, email, created_at
		FROM federated_identities
		WHERE account_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list federated identities: %w", err)
	}
	defer rows.Close()

	var identities []*domain.FederatedIdentity
	for rows.Next() {
		var i domain.FederatedIdentity
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Provider, &i.ProviderID, &i.Email, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan federated identity: %w", err)
		}
		identities = append(identities, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate federated identities: %w", err)
	}

	return identities, nil
}
