// Package repository defines the persistence interfaces for the auth service.
// Implementations live in the postgres and redis subpackages.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
)

// AccountRepository persists accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetTwoFactorEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, int, error)
}

// RefreshTokenRepository persists refresh token records. Rotation depends on
// InvalidateIfActive being a single atomic compare-and-set.
type RefreshTokenRepository interface {
	Store(ctx context.Context, token *domain.RefreshToken) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error)

	// InvalidateIfActive revokes the token only if it has not been revoked
	// yet. It returns true when this call performed the revocation; false
	// means the token was already revoked, which the caller treats as replay.
	InvalidateIfActive(ctx context.Context, id uuid.UUID) (bool, error)

	// RevokeFamily revokes every active token in the family and returns how
	// many were revoked.
	RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error)

	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ChallengeRepository persists second-factor login challenges.
type ChallengeRepository interface {
	// Replace removes any unconsumed challenge for the account and stores the
	// new one atomically, keeping at most one pending challenge per account.
	Replace(ctx context.Context, challenge *domain.TwoFactorChallenge) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.TwoFactorChallenge, error)

	// IncrementAttempts bumps the attempt counter atomically and returns the
	// new count, so concurrent verifications cannot exceed the ceiling.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// Consume marks the challenge redeemed only if it is still unconsumed,
	// returning true when this call won.
	Consume(ctx context.Context, id uuid.UUID) (bool, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// FederatedIdentityRepository persists links between accounts and external
// identity providers.
type FederatedIdentityRepository interface {
	Create(ctx context.Context, identity *domain.FederatedIdentity) error
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.FederatedIdentity, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*domain.FederatedIdentity, error)
}

// PasswordResetRepository persists emailed password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *domain.PasswordReset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PasswordReset, error)

	// MarkUsed consumes the token only if it is still unused, returning true
	// when this call won.
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// StateStore persists short-lived single-use federation state values.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error

	// Consume removes the state and reports whether it existed. A state can
	// be consumed at most once.
	Consume(ctx context.Context, state string) (bool, error)
}
