package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/oauth"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

func testProfile() *oauth.Profile {
	return &oauth.Profile{
		ProviderID: "google-subject-1",
		Email:      "jane@example.com",
		FirstName:  "Jane",
		LastName:   "Doe",
	}
}

func TestBeginFederation(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.states.On("Save", ctx, mock.AnythingOfType("string"), 10*time.Minute).Return(nil)
	mocks.provider.On("AuthURL", mock.AnythingOfType("string")).
		Return("https://accounts.google.com/o/oauth2/auth?state=abc")

	url, err := svc.BeginFederation(ctx)

	require.NoError(t, err)
	assert.Contains(t, url, "state=")
	mocks.assertExpectations(t)
}

func TestCompleteFederation_ExistingIdentity(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	profile := testProfile()
	identity := &domain.FederatedIdentity{
		ID:         uuid.New(),
		AccountID:  account.ID,
		Provider:   domain.ProviderGoogle,
		ProviderID: profile.ProviderID,
		Email:      profile.Email,
	}

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil)
	mocks.provider.On("Exchange", ctx, "code-1").Return(profile, nil)
	mocks.federated.On("GetByProvider", ctx, domain.ProviderGoogle, profile.ProviderID).Return(identity, nil)
	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.tokens.On("Store", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	mocks.accounts.On("RecordLogin", ctx, account.ID, mock.AnythingOfType("time.Time")).Return(nil)

	result, err := svc.CompleteFederation(ctx, "state-1", "code-1")

	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_LinksByEmail(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	profile := testProfile()

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil)
	mocks.provider.On("Exchange", ctx, "code-1").Return(profile, nil)
	mocks.federated.On("GetByProvider", ctx, domain.ProviderGoogle, profile.ProviderID).
		Return(nil, apperrors.ErrNotFound)
	mocks.accounts.On("GetByEmail", ctx, profile.Email).Return(account, nil)
	mocks.federated.On("Create", ctx, mock.MatchedBy(func(fi *domain.FederatedIdentity) bool {
		return fi.AccountID == account.ID && fi.ProviderID == profile.ProviderID
	})).Return(nil)
	mocks.tokens.On("Store", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	mocks.accounts.On("RecordLogin", ctx, account.ID, mock.AnythingOfType("time.Time")).Return(nil)

	result, err := svc.CompleteFederation(ctx, "state-1", "code-1")

	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_ProvisionsNewAccount(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	profile := testProfile()

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil)
	mocks.provider.On("Exchange", ctx, "code-1").Return(profile, nil)
	mocks.federated.On("GetByProvider", ctx, domain.ProviderGoogle, profile.ProviderID).
		Return(nil, apperrors.ErrNotFound)
	mocks.accounts.On("GetByEmail", ctx, profile.Email).Return(nil, apperrors.ErrNotFound)
	mocks.accounts.On("Create", ctx, mock.MatchedBy(func(a *domain.Account) bool {
		return a.Email == profile.Email && a.Role == domain.RoleUser && a.IsActive && a.PasswordHash == ""
	})).Return(nil)
	mocks.publisher.On("PublishAccountRegistered", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)
	mocks.federated.On("Create", ctx, mock.AnythingOfType("*domain.FederatedIdentity")).Return(nil)
	mocks.tokens.On("Store", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	mocks.accounts.On("RecordLogin", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)

	result, err := svc.CompleteFederation(ctx, "state-1", "code-1")

	require.NoError(t, err)
	assert.Equal(t, profile.Email, result.Account.Email)
	assert.Equal(t, domain.RoleUser, result.Account.Role)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_UnknownState(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.states.On("Consume", ctx, "state-1").Return(false, nil)

	_, err := svc.CompleteFederation(ctx, "state-1", "code-1")

	assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_StateIsSingleUse(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	profile := testProfile()
	identity := &domain.FederatedIdentity{
		ID:         uuid.New(),
		AccountID:  account.ID,
		Provider:   domain.ProviderGoogle,
		ProviderID: profile.ProviderID,
	}

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil).Once()
	mocks.states.On("Consume", ctx, "state-1").Return(false, nil).Once()
	mocks.provider.On("Exchange", ctx, "code-1").Return(profile, nil)
	mocks.federated.On("GetByProvider", ctx, domain.ProviderGoogle, profile.ProviderID).Return(identity, nil)
	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.tokens.On("Store", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	mocks.accounts.On("RecordLogin", ctx, account.ID, mock.AnythingOfType("time.Time")).Return(nil)

	_, err := svc.CompleteFederation(ctx, "state-1", "code-1")
	require.NoError(t, err)

	_, err = svc.CompleteFederation(ctx, "state-1", "code-1")
	assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_ProviderFailure(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil)
	mocks.provider.On("Exchange", ctx, "bad-code").
		Return(nil, apperrors.ProviderError(assert.AnError))

	_, err := svc.CompleteFederation(ctx, "state-1", "bad-code")

	assert.ErrorIs(t, err, apperrors.ErrProviderError)
	mocks.assertExpectations(t)
}

func TestCompleteFederation_InactiveAccount(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	account.IsActive = false
	profile := testProfile()
	identity := &domain.FederatedIdentity{
		ID:         uuid.New(),
		AccountID:  account.ID,
		Provider:   domain.ProviderGoogle,
		ProviderID: profile.ProviderID,
	}

	mocks.states.On("Consume", ctx, "state-1").Return(true, nil)
	mocks.provider.On("Exchange", ctx, "code-1").Return(profile, nil)
	mocks.federated.On("GetByProvider", ctx, domain.ProviderGoogle, profile.ProviderID).Return(identity, nil)
	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := svc.CompleteFederation(ctx, "state-1", "code-1")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	mocks.assertExpectations(t)
}
