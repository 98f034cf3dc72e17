// Package service implements the business logic of the auth service: password
// login with an optional second factor, token issuance and rotation,
// federation, and account management.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/event"
	"github.com/NipunKumar21/Encore-auth/internal/oauth"
	"github.com/NipunKumar21/Encore-auth/internal/repository"
	"github.com/NipunKumar21/Encore-auth/internal/token"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// secretBytes is the entropy of the opaque half of refresh and reset tokens.
const secretBytes = 32

// Config holds the tunable lifetimes of the service.
type Config struct {
	RefreshExpiry       time.Duration
	ChallengeExpiry     time.Duration
	PasswordResetExpiry time.Duration
	OAuthStateExpiry    time.Duration
}

// AuthService implements the business logic for authentication and session
// management.
type AuthService struct {
	accountRepo   repository.AccountRepository
	tokenRepo     repository.RefreshTokenRepository
	challengeRepo repository.ChallengeRepository
	federatedRepo repository.FederatedIdentityRepository
	resetRepo     repository.PasswordResetRepository
	stateStore    repository.StateStore
	tokens        *token.Manager
	provider      oauth.Provider
	producer      event.Publisher
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time

	// dummyHash absorbs a bcrypt comparison when the account does not
	// exist, keeping login timing independent of account existence.
	dummyHash []byte

	hashCost int
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithBcryptCost overrides the bcrypt cost factor, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *AuthService) { s.hashCost = cost }
}

// NewAuthService creates the auth service.
func NewAuthService(
	accountRepo repository.AccountRepository,
	tokenRepo repository.RefreshTokenRepository,
	challengeRepo repository.ChallengeRepository,
	federatedRepo repository.FederatedIdentityRepository,
	resetRepo repository.PasswordResetRepository,
	stateStore repository.StateStore,
	tokens *token.Manager,
	provider oauth.Provider,
	producer event.Publisher,
	logger *slog.Logger,
	cfg Config,
	opts ...Option,
) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.MinCost)

	s := &AuthService{
		accountRepo:   accountRepo,
		tokenRepo:     tokenRepo,
		challengeRepo: challengeRepo,
		federatedRepo: federatedRepo,
		resetRepo:     resetRepo,
		stateStore:    stateStore,
		tokens:        tokens,
		provider:      provider,
		producer:      producer,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
		dummyHash:     dummy,
		hashCost:      bcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// issueTokens mints an access token plus a fresh opaque refresh token in the
// given family, persisting only the hash of the refresh secret.
func (s *AuthService) issueTokens(ctx context.Context, account *domain.Account, familyID uuid.UUID) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(account)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	opaque, record, err := s.mintRefreshToken(account.ID, familyID)
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.Store(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: opaque,
		ExpiresIn:    int64(s.tokens.AccessExpiry().Seconds()),
	}, nil
}

// mintRefreshToken builds an opaque refresh token of the form <id>.<secret>
// and the record storing its hash.
func (s *AuthService) mintRefreshToken(accountID, familyID uuid.UUID) (string, *domain.RefreshToken, error) {
	secret, err := randomSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := s.now().UTC()
	record := &domain.RefreshToken{
		ID:        uuid.New(),
		AccountID: accountID,
		FamilyID:  familyID,
		TokenHash: hashSecret(secret),
		ExpiresAt: now.Add(s.cfg.RefreshExpiry),
		CreatedAt: now,
	}

	return record.ID.String() + "." + secret, record, nil
}

// parseOpaqueToken splits an <id>.<secret> token into its halves.
func parseOpaqueToken(tok string) (uuid.UUID, string, error) {
	idPart, secret, ok := strings.Cut(tok, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", fmt.Errorf("malformed token")
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("malformed token id")
	}
	return id, secret, nil
}

// randomSecret returns a 256-bit URL-safe secret.
func randomSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashSecret returns the SHA-256 hex digest of a token secret.
func hashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// secretMatches compares a submitted secret against a stored hash in
// constant time.
func secretMatches(secret, storedHash string) bool {
	submitted := hashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(storedHash)) == 1
}

// validatePassword checks minimum password complexity.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *AuthService) recordLogin(ctx context.Context, account *domain.Account) {
	if err := s.accountRepo.RecordLogin(ctx, account.ID, s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "failed to record login time",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
