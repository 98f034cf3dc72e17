// Package token issues and validates the signed access tokens presented on
// API requests. Signing keys are versioned: tokens are minted with the
// current key, and tokens signed with the previous key stay valid through a
// rotation window.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

const issuer = "auth-service"

const (
	kidCurrent  = "v2"
	kidPrevious = "v1"
)

// Claims are the registered and private claims carried by an access token.
type Claims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and validates access tokens with HS256.
type Manager struct {
	currentSecret  []byte
	previousSecret []byte
	accessExpiry   time.Duration
	now            func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager. previousSecret may be empty when no key
// rotation is in progress.
func NewManager(currentSecret, previousSecret string, accessExpiry time.Duration, opts ...Option) *Manager {
	m := &Manager{
		currentSecret: []byte(currentSecret),
		accessExpiry:  accessExpiry,
		now:           time.Now,
	}
	if previousSecret != "" {
		m.previousSecret = []byte(previousSecret)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessExpiry returns the configured access token lifetime.
func (m *Manager) AccessExpiry() time.Duration {
	return m.accessExpiry
}

// GenerateAccessToken mints a signed access token for the account.
func (m *Manager) GenerateAccessToken(account *domain.Account) (string, error) {
	now := m.now()
	claims := Claims{
		AccountID: account.ID.String(),
		Email:     account.Email,
		Role:      string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpiry)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = kidCurrent

	signed, err := tok.SignedString(m.currentSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and verifies an access token, selecting the
// verification key by the kid header. Expired tokens and tokens that fail
// verification return distinct sentinel errors but map to the same uniform
// client message.
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims,
		m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid()
	}
	if !tok.Valid {
		return nil, apperrors.TokenInvalid()
	}
	return claims, nil
}

func (m *Manager) keyFunc(tok *jwt.Token) (any, error) {
	kid, _ := tok.Header["kid"].(string)
	switch kid {
	case kidCurrent, "":
		return m.currentSecret, nil
	case kidPrevious:
		if m.previousSecret == nil {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return m.previousSecret, nil
	default:
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
}
