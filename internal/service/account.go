package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// RegisterInput holds the parameters for registering an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account and issues an initial token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return nil, nil, apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return nil, nil, apperrors.InvalidInput("last name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	tokens, err := s.issueTokens(ctx, account, uuid.New())
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID.String()),
	)

	return account, tokens, nil
}

// GetAccount retrieves an account by ID.
func (s *AuthService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// EnableTwoFactor turns on second-factor login for the account. The password
// must be re-verified.
func (s *AuthService) EnableTwoFactor(ctx context.Context, accountID uuid.UUID, password string) error {
	return s.setTwoFactor(ctx, accountID, password, true)
}

// DisableTwoFactor turns off second-factor login for the account.
func (s *AuthService) DisableTwoFactor(ctx context.Context, accountID uuid.UUID, password string) error {
	return s.setTwoFactor(ctx, accountID, password, false)
}

func (s *AuthService) setTwoFactor(ctx context.Context, accountID uuid.UUID, password string, enabled bool) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account.PasswordHash == "" {
		return apperrors.InvalidInput("a password must be set before changing two-factor settings")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return apperrors.InvalidCredentials()
	}

	if err := s.accountRepo.SetTwoFactorEnabled(ctx, accountID, enabled); err != nil {
		return fmt.Errorf("set two factor enabled: %w", err)
	}

	s.logger.InfoContext(ctx, "two factor setting changed",
		slog.String("account_id", accountID.String()),
		slog.Bool("enabled", enabled),
	)

	return nil
}

// ForgotPassword opens a password reset. Unknown emails succeed silently so
// the endpoint cannot be used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generate reset secret: %w", err)
	}

	now := s.now().UTC()
	reset := &domain.PasswordReset{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: hashSecret(secret),
		ExpiresAt: now.Add(s.cfg.PasswordResetExpiry),
		CreatedAt: now,
	}

	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return fmt.Errorf("store password reset: %w", err)
	}

	resetToken := reset.ID.String() + "." + secret
	if err := s.producer.PublishPasswordResetRequested(ctx, account, reset, resetToken); err != nil {
		return fmt.Errorf("publish password reset: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("account_id", account.ID.String()),
	)

	return nil
}

// ResetPassword redeems an emailed reset token. The token is single-use;
// success revokes every active session the account holds.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	id, secret, err := parseOpaqueToken(resetToken)
	if err != nil {
		return apperrors.TokenInvalid()
	}

	reset, err := s.resetRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.TokenInvalid()
		}
		return fmt.Errorf("get password reset: %w", err)
	}

	if !secretMatches(secret, reset.TokenHash) {
		return apperrors.TokenInvalid()
	}
	if reset.UsedAt != nil {
		return apperrors.TokenInvalid()
	}
	if reset.Expired(s.now().UTC()) {
		return apperrors.TokenExpired()
	}

	won, err := s.resetRepo.MarkUsed(ctx, id)
	if err != nil {
		return fmt.Errorf("consume password reset: %w", err)
	}
	if !won {
		return apperrors.TokenInvalid()
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accountRepo.UpdatePassword(ctx, reset.AccountID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.tokenRepo.RevokeAllForAccount(ctx, reset.AccountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			slog.String("account_id", reset.AccountID.String()),
			slog.String("error", err.Error()),
		)
	}

	if account, err := s.accountRepo.GetByID(ctx, reset.AccountID); err == nil {
		if err := s.producer.PublishPasswordChanged(ctx, account); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish password_changed event",
				slog.String("account_id", account.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("account_id", reset.AccountID.String()),
	)

	return nil
}

// ChangePassword lets an authenticated account change its password. Success
// revokes every active session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.InvalidCredentials()
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accountRepo.UpdatePassword(ctx, accountID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.tokenRepo.RevokeAllForAccount(ctx, accountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.String("account_id", accountID.String()),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishPasswordChanged(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password_changed event",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("account_id", accountID.String()),
	)

	return nil
}

// ListAccounts returns a page of accounts for administration.
func (s *AuthService) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	accounts, total, err := s.accountRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, total, nil
}

// UpdateAccountRole changes an account's role. An admin cannot change their
// own role, which keeps at least one admin reachable.
func (s *AuthService) UpdateAccountRole(ctx context.Context, actorID, accountID uuid.UUID, role domain.Role) error {
	if !domain.IsValidRole(string(role)) {
		return apperrors.InvalidInput("invalid role")
	}
	if actorID == accountID {
		return apperrors.InvalidInput("cannot change your own role")
	}

	if err := s.accountRepo.UpdateRole(ctx, accountID, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	s.logger.InfoContext(ctx, "account role updated",
		slog.String("actor_id", actorID.String()),
		slog.String("account_id", accountID.String()),
		slog.String("role", string(role)),
	)

	return nil
}

// DeactivateAccount soft-disables an account and revokes its sessions.
// Accounts are never deleted.
func (s *AuthService) DeactivateAccount(ctx context.Context, actorID, accountID uuid.UUID) error {
	if actorID == accountID {
		return apperrors.InvalidInput("cannot deactivate your own account")
	}

	if err := s.accountRepo.SetActive(ctx, accountID, false); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	if _, err := s.tokenRepo.RevokeAllForAccount(ctx, accountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions on deactivation",
			slog.String("account_id", accountID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account deactivated",
		slog.String("actor_id", actorID.String()),
		slog.String("account_id", accountID.String()),
	)

	return nil
}

// ReactivateAccount re-enables a previously deactivated account.
func (s *AuthService) ReactivateAccount(ctx context.Context, actorID, accountID uuid.UUID) error {
	if err := s.accountRepo.SetActive(ctx, accountID, true); err != nil {
		return fmt.Errorf("reactivate account: %w", err)
	}

	s.logger.InfoContext(ctx, "account reactivated",
		slog.String("actor_id", actorID.String()),
		slog.String("account_id", accountID.String()),
	)

	return nil
}
