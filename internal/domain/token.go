package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair is an access/refresh pair issued on successful authentication.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 hash of the secret half is kept at rest. FamilyID groups every
// token descended from the same login; replay of a rotated token revokes the
// whole family.
type RefreshToken struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	FamilyID  uuid.UUID  `json:"family_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token has been invalidated.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token has passed its lifetime.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
