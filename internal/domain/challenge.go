package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxChallengeAttempts is the verification attempt ceiling for a single
// login challenge.
const MaxChallengeAttempts = 5

// TwoFactorChallenge is a pending second-factor login challenge. CodeHash is
// the SHA-256 of the emailed one-time code; the plaintext is never stored.
// At most one unconsumed challenge exists per account at a time.
type TwoFactorChallenge struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	CodeHash   string     `json:"-"`
	Attempts   int        `json:"attempts"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the challenge can no longer be verified.
func (c *TwoFactorChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Exhausted reports whether the attempt ceiling has been reached.
func (c *TwoFactorChallenge) Exhausted() bool {
	return c.Attempts >= MaxChallengeAttempts
}

// Consumed reports whether the challenge has already been redeemed.
func (c *TwoFactorChallenge) Consumed() bool {
	return c.ConsumedAt != nil
}
