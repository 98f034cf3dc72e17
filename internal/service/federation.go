package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// BeginFederation opens a federated login: it mints a single-use state value,
// stores it with a TTL, and returns the provider consent URL.
func (s *AuthService) BeginFederation(ctx context.Context) (string, error) {
	state, err := randomSecret()
	if err != nil {
		return "", fmt.Errorf("generate federation state: %w", err)
	}

	if err := s.stateStore.Save(ctx, state, s.cfg.OAuthStateExpiry); err != nil {
		return "", fmt.Errorf("save federation state: %w", err)
	}

	return s.provider.AuthURL(state), nil
}

// CompleteFederation handles the provider callback. The state must match an
// unexpired, never-used value; the code exchange is bounded and fails closed.
// A provider identity seen before logs into its linked account; a new
// identity is linked by verified email or provisions a fresh account.
func (s *AuthService) CompleteFederation(ctx context.Context, state, code string) (*LoginResult, error) {
	ok, err := s.stateStore.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("consume federation state: %w", err)
	}
	if !ok {
		return nil, apperrors.StateMismatch()
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		// Provider sentinel already attached by the provider.
		return nil, err
	}

	account, err := s.resolveFederatedAccount(ctx, profile.ProviderID, profile.Email, profile.FirstName, profile.LastName)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.issueTokens(ctx, account, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	s.recordLogin(ctx, account)

	s.logger.InfoContext(ctx, "federated login completed",
		slog.String("account_id", account.ID.String()),
		slog.String("provider", domain.ProviderGoogle),
	)

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// resolveFederatedAccount maps a provider identity to an account, linking or
// provisioning as needed.
func (s *AuthService) resolveFederatedAccount(ctx context.Context, providerID, email, firstName, lastName string) (*domain.Account, error) {
	identity, err := s.federatedRepo.GetByProvider(ctx, domain.ProviderGoogle, providerID)
	if err == nil {
		account, err := s.accountRepo.GetByID(ctx, identity.AccountID)
		if err != nil {
			return nil, fmt.Errorf("get federated account: %w", err)
		}
		return account, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get federated identity: %w", err)
	}

	// First sign-in with this provider identity. Link to an existing account
	// with the same verified email, or provision a new one.
	account, err := s.accountRepo.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		account, err = s.provisionFederatedAccount(ctx, email, firstName, lastName)
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	link := &domain.FederatedIdentity{
		ID:         uuid.New(),
		AccountID:  account.ID,
		Provider:   domain.ProviderGoogle,
		ProviderID: providerID,
		Email:      email,
		CreatedAt:  now,
	}
	if err := s.federatedRepo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("link federated identity: %w", err)
	}

	return account, nil
}

func (s *AuthService) provisionFederatedAccount(ctx context.Context, email, firstName, lastName string) (*domain.Account, error) {
	now := s.now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      domain.RoleUser,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("provision federated account: %w", err)
	}

	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "federated account provisioned",
		slog.String("account_id", account.ID.String()),
	)

	return account, nil
}
