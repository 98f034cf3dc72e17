package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/twofactor"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// LoginInput holds the parameters for a password login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the outcome of a password login. Exactly one branch is set:
// either a pending challenge, or an established session.
type LoginResult struct {
	Requires2FA bool
	ChallengeID uuid.UUID
	Account     *domain.Account
	Tokens      *domain.TokenPair
}

// Login verifies the password and either issues tokens directly or opens a
// second-factor challenge. Every credential failure returns the same
// non-enumerating error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	account, err := s.accountRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		// Burn a comparison so unknown emails cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		return nil, apperrors.InvalidCredentials()
	}

	if account.PasswordHash == "" {
		// Federated-only account with no password set.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		return nil, apperrors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.InvalidCredentials()
	}

	if !account.IsActive {
		return nil, apperrors.InvalidCredentials()
	}

	if account.TwoFactorEnabled {
		challengeID, err := s.openChallenge(ctx, account)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Requires2FA: true, ChallengeID: challengeID}, nil
	}

	tokens, err := s.issueTokens(ctx, account, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	s.recordLogin(ctx, account)

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID.String()),
	)

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// openChallenge creates a fresh challenge for the account, superseding any
// pending one, and hands the code off for delivery.
func (s *AuthService) openChallenge(ctx context.Context, account *domain.Account) (uuid.UUID, error) {
	code, err := twofactor.GenerateCode()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate challenge code: %w", err)
	}

	now := s.now().UTC()
	challenge := &domain.TwoFactorChallenge{
		ID:        uuid.New(),
		AccountID: account.ID,
		CodeHash:  twofactor.HashCode(code),
		ExpiresAt: now.Add(s.cfg.ChallengeExpiry),
		CreatedAt: now,
	}

	if err := s.challengeRepo.Replace(ctx, challenge); err != nil {
		return uuid.Nil, fmt.Errorf("store challenge: %w", err)
	}

	// Delivery is the point of the challenge; fail the login if the code
	// cannot be handed off.
	if err := s.producer.PublishTwoFactorCodeIssued(ctx, account, challenge, code); err != nil {
		return uuid.Nil, fmt.Errorf("publish challenge code: %w", err)
	}

	s.logger.InfoContext(ctx, "second factor challenge opened",
		slog.String("account_id", account.ID.String()),
		slog.String("challenge_id", challenge.ID.String()),
	)

	return challenge.ID, nil
}

// VerifyTwoFactor redeems a pending challenge. The attempt counter is bumped
// atomically before the code comparison, so the ceiling holds under
// concurrent submissions, and a correct code consumes the challenge exactly
// once.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeID uuid.UUID, code string) (*LoginResult, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ChallengeInvalid()
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	if challenge.Consumed() {
		return nil, apperrors.ChallengeInvalid()
	}
	if challenge.Expired(s.now().UTC()) {
		return nil, apperrors.ChallengeExpired()
	}

	attempts, err := s.challengeRepo.IncrementAttempts(ctx, challengeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ChallengeInvalid()
		}
		return nil, fmt.Errorf("increment challenge attempts: %w", err)
	}
	if attempts > domain.MaxChallengeAttempts {
		return nil, apperrors.ChallengeExhausted()
	}

	if !twofactor.VerifyCode(code, challenge.CodeHash) {
		if attempts >= domain.MaxChallengeAttempts {
			return nil, apperrors.ChallengeExhausted()
		}
		return nil, apperrors.ChallengeInvalid()
	}

	won, err := s.challengeRepo.Consume(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	if !won {
		return nil, apperrors.ChallengeInvalid()
	}

	account, err := s.accountRepo.GetByID(ctx, challenge.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account for challenge: %w", err)
	}
	if !account.IsActive {
		return nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.issueTokens(ctx, account, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	s.recordLogin(ctx, account)

	s.logger.InfoContext(ctx, "second factor verified",
		slog.String("account_id", account.ID.String()),
	)

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is atomically
// invalidated and a successor in the same family is issued. Replay of an
// already-rotated token revokes the entire family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	id, secret, err := parseOpaqueToken(refreshToken)
	if err != nil {
		return nil, apperrors.TokenInvalid()
	}

	record, err := s.tokenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenInvalid()
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if !secretMatches(secret, record.TokenHash) {
		return nil, apperrors.TokenInvalid()
	}

	if record.Revoked() {
		// Replay of a rotated or revoked token: kill the whole family.
		s.revokeFamily(ctx, record, "refresh token replay")
		return nil, apperrors.FamilyRevoked()
	}

	if record.Expired(s.now().UTC()) {
		return nil, apperrors.TokenExpired()
	}

	won, err := s.tokenRepo.InvalidateIfActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !won {
		// A concurrent request rotated it first; this presentation is replay.
		s.revokeFamily(ctx, record, "concurrent refresh token replay")
		return nil, apperrors.FamilyRevoked()
	}

	account, err := s.accountRepo.GetByID(ctx, record.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account for refresh: %w", err)
	}
	if !account.IsActive {
		return nil, apperrors.TokenRevoked()
	}

	tokens, err := s.issueTokens(ctx, account, record.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("account_id", account.ID.String()),
	)

	return tokens, nil
}

func (s *AuthService) revokeFamily(ctx context.Context, record *domain.RefreshToken, reason string) {
	revoked, err := s.tokenRepo.RevokeFamily(ctx, record.FamilyID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke token family",
			slog.String("family_id", record.FamilyID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.WarnContext(ctx, "token family revoked",
		slog.String("account_id", record.AccountID.String()),
		slog.String("family_id", record.FamilyID.String()),
		slog.Int64("tokens_revoked", revoked),
		slog.String("reason", reason),
	)

	if err := s.producer.PublishFamilyRevoked(ctx, record.AccountID.String(), record.FamilyID.String(), revoked, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish family_revoked event",
			slog.String("family_id", record.FamilyID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Logout revokes the session family behind the presented refresh token.
// Malformed, unknown, and foreign tokens are all rejected with the same
// error; re-logout of an already-revoked session succeeds.
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID, refreshToken string) error {
	id, secret, err := parseOpaqueToken(refreshToken)
	if err != nil {
		return apperrors.TokenInvalid()
	}

	record, err := s.tokenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.TokenInvalid()
		}
		return fmt.Errorf("get refresh token: %w", err)
	}

	if !secretMatches(secret, record.TokenHash) {
		return apperrors.TokenInvalid()
	}
	if record.AccountID != accountID {
		return apperrors.TokenInvalid()
	}

	if _, err := s.tokenRepo.RevokeFamily(ctx, record.FamilyID); err != nil {
		return fmt.Errorf("revoke session family: %w", err)
	}

	s.logger.InfoContext(ctx, "account logged out",
		slog.String("account_id", accountID.String()),
	)

	return nil
}
