package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.accounts.On("Create", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)
	mocks.tokens.On("Store", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	mocks.publisher.On("PublishAccountRegistered", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)

	account, tokens, err := svc.Register(ctx, RegisterInput{
		Email:     "jane@example.com",
		Password:  "SecurePass123",
		FirstName: "Jane",
		LastName:  "Doe",
	})

	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", account.Email)
	assert.Equal(t, domain.RoleUser, account.Role)
	assert.True(t, account.IsActive)
	assert.False(t, account.TwoFactorEnabled)
	assert.NotEmpty(t, account.PasswordHash)
	assert.NotEqual(t, "SecurePass123", account.PasswordHash)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	mocks.assertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.accounts.On("Create", ctx, mock.AnythingOfType("*domain.Account")).
		Return(apperrors.AlreadyExists("account", "email", "jane@example.com"))

	account, tokens, err := svc.Register(ctx, RegisterInput{
		Email:     "jane@example.com",
		Password:  "SecurePass123",
		FirstName: "Jane",
		LastName:  "Doe",
	})

	assert.Nil(t, account)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	mocks.assertExpectations(t)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, password := range []string{"Ab1", "securepass123", "SECUREPASS123", "SecurePassword"} {
		_, _, err := svc.Register(ctx, RegisterInput{
			Email:     "jane@example.com",
			Password:  password,
			FirstName: "Jane",
			LastName:  "Doe",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "password %q should be rejected", password)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Password: "SecurePass123", FirstName: "Jane", LastName: "Doe"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = svc.Register(ctx, RegisterInput{Email: "jane@example.com", Password: "SecurePass123", LastName: "Doe"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Two-Factor Setting Tests ---

func TestEnableTwoFactor_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.accounts.On("SetTwoFactorEnabled", ctx, account.ID, true).Return(nil)

	err := svc.EnableTwoFactor(ctx, account.ID, "SecurePass123")

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestEnableTwoFactor_WrongPassword(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	err := svc.EnableTwoFactor(ctx, account.ID, "WrongPass123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	mocks.assertExpectations(t)
}

func TestDisableTwoFactor_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	account.TwoFactorEnabled = true

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.accounts.On("SetTwoFactorEnabled", ctx, account.ID, false).Return(nil)

	err := svc.DisableTwoFactor(ctx, account.ID, "SecurePass123")

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestEnableTwoFactor_FederatedOnlyAccount(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	account.PasswordHash = ""

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	err := svc.EnableTwoFactor(ctx, account.ID, "SecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	mocks.assertExpectations(t)
}

// --- Password Reset Tests ---

func TestForgotPassword_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()

	mocks.accounts.On("GetByEmail", ctx, account.Email).Return(account, nil)
	mocks.resets.On("Create", ctx, mock.MatchedBy(func(r *domain.PasswordReset) bool {
		return r.AccountID == account.ID && r.TokenHash != ""
	})).Return(nil)
	mocks.publisher.On("PublishPasswordResetRequested", ctx, account,
		mock.AnythingOfType("*domain.PasswordReset"), mock.AnythingOfType("string")).Return(nil)

	err := svc.ForgotPassword(ctx, account.Email)

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestForgotPassword_UnknownEmailSucceedsSilently(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.accounts.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	err := svc.ForgotPassword(ctx, "nobody@example.com")

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func storedPasswordReset(accountID uuid.UUID) (string, *domain.PasswordReset) {
	secret, err := randomSecret()
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC()
	reset := &domain.PasswordReset{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: hashSecret(secret),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	return reset.ID.String() + "." + secret, reset
}

func TestResetPassword_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()
	token, reset := storedPasswordReset(account.ID)

	mocks.resets.On("GetByID", ctx, reset.ID).Return(reset, nil)
	mocks.resets.On("MarkUsed", ctx, reset.ID).Return(true, nil)
	mocks.accounts.On("UpdatePassword", ctx, account.ID, mock.AnythingOfType("string")).Return(nil)
	mocks.tokens.On("RevokeAllForAccount", ctx, account.ID).Return(int64(2), nil)
	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.publisher.On("PublishPasswordChanged", ctx, account).Return(nil)

	err := svc.ResetPassword(ctx, token, "NewSecurePass123")

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestResetPassword_WrongSecret(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	_, reset := storedPasswordReset(uuid.New())

	mocks.resets.On("GetByID", ctx, reset.ID).Return(reset, nil)

	err := svc.ResetPassword(ctx, reset.ID.String()+".wrong-secret", "NewSecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	mocks.assertExpectations(t)
}

func TestResetPassword_AlreadyUsed(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	token, reset := storedPasswordReset(uuid.New())
	usedAt := time.Now().UTC()
	reset.UsedAt = &usedAt

	mocks.resets.On("GetByID", ctx, reset.ID).Return(reset, nil)

	err := svc.ResetPassword(ctx, token, "NewSecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	mocks.assertExpectations(t)
}

func TestResetPassword_Expired(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	token, reset := storedPasswordReset(uuid.New())
	reset.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	mocks.resets.On("GetByID", ctx, reset.ID).Return(reset, nil)

	err := svc.ResetPassword(ctx, token, "NewSecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	mocks.assertExpectations(t)
}

func TestResetPassword_LosesConsumeRace(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	token, reset := storedPasswordReset(uuid.New())

	mocks.resets.On("GetByID", ctx, reset.ID).Return(reset, nil)
	mocks.resets.On("MarkUsed", ctx, reset.ID).Return(false, nil)

	err := svc.ResetPassword(ctx, token, "NewSecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	mocks.assertExpectations(t)
}

// --- ChangePassword Tests ---

func TestChangePassword_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	mocks.accounts.On("UpdatePassword", ctx, account.ID, mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("NewSecurePass123")) == nil
	})).Return(nil)
	mocks.tokens.On("RevokeAllForAccount", ctx, account.ID).Return(int64(3), nil)
	mocks.publisher.On("PublishPasswordChanged", ctx, account).Return(nil)

	err := svc.ChangePassword(ctx, account.ID, "SecurePass123", "NewSecurePass123")

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	account := testAccount()

	mocks.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	err := svc.ChangePassword(ctx, account.ID, "WrongPass123", "NewSecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	mocks.assertExpectations(t)
}

func TestChangePassword_SameAsCurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, uuid.New(), "SecurePass123", "SecurePass123")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Admin Tests ---

func TestListAccounts(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	accounts := []*domain.Account{testAccount(), testAccount()}

	mocks.accounts.On("List", ctx, 20, 0).Return(accounts, 2, nil)

	got, total, err := svc.ListAccounts(ctx, 20, 0)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, total)
	mocks.assertExpectations(t)
}

func TestListAccounts_ClampsLimit(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.accounts.On("List", ctx, 20, 0).Return([]*domain.Account{}, 0, nil)

	_, _, err := svc.ListAccounts(ctx, 500, -3)

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestUpdateAccountRole_Success(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	actorID := uuid.New()
	accountID := uuid.New()

	mocks.accounts.On("UpdateRole", ctx, accountID, domain.RoleAdmin).Return(nil)

	err := svc.UpdateAccountRole(ctx, actorID, accountID, domain.RoleAdmin)

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestUpdateAccountRole_InvalidRole(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.UpdateAccountRole(context.Background(), uuid.New(), uuid.New(), domain.Role("superuser"))

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateAccountRole_CannotChangeOwnRole(t *testing.T) {
	svc, _ := newTestService(t)
	id := uuid.New()

	err := svc.UpdateAccountRole(context.Background(), id, id, domain.RoleUser)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeactivateAccount_RevokesSessions(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	actorID := uuid.New()
	accountID := uuid.New()

	mocks.accounts.On("SetActive", ctx, accountID, false).Return(nil)
	mocks.tokens.On("RevokeAllForAccount", ctx, accountID).Return(int64(2), nil)

	err := svc.DeactivateAccount(ctx, actorID, accountID)

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

func TestDeactivateAccount_CannotDeactivateSelf(t *testing.T) {
	svc, _ := newTestService(t)
	id := uuid.New()

	err := svc.DeactivateAccount(context.Background(), id, id)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReactivateAccount(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()

	mocks.accounts.On("SetActive", ctx, accountID, true).Return(nil)

	err := svc.ReactivateAccount(ctx, uuid.New(), accountID)

	require.NoError(t, err)
	mocks.assertExpectations(t)
}

// --- Sweeper Tests ---

func TestSweepExpired(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.tokens.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(4), nil)
	mocks.challenges.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	mocks.resets.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(0), nil)

	svc.SweepExpired(ctx)

	mocks.assertExpectations(t)
}

func TestSweepExpired_OneFailureDoesNotBlockOthers(t *testing.T) {
	svc, mocks := newTestService(t)
	ctx := context.Background()

	mocks.tokens.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(0), assert.AnError)
	mocks.challenges.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(2), nil)
	mocks.resets.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(1), nil)

	svc.SweepExpired(ctx)

	mocks.assertExpectations(t)
}
