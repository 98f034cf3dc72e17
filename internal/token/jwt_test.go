package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

const (
	testSecret    = "test-secret-key-for-auth-tokens-0000"
	testOldSecret = "previous-secret-key-for-auth-1111111"
)

func testAccount() *domain.Account {
	return &domain.Account{
		ID:    uuid.New(),
		Email: "jane@example.com",
		Role:  domain.RoleAdmin,
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	m := NewManager(testSecret, "", 15*time.Minute)
	account := testAccount()

	tokenString, err := m.GenerateAccessToken(account)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := m.ValidateAccessToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.AccountID)
	assert.Equal(t, account.Email, claims.Email)
	assert.Equal(t, string(domain.RoleAdmin), claims.Role)
	assert.Equal(t, account.ID.String(), claims.Subject)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuedAt := func() time.Time { return past }

	m := NewManager(testSecret, "", 15*time.Minute, WithClock(issuedAt))
	tokenString, err := m.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	// Validate against real time; the token expired 45 minutes ago.
	validator := NewManager(testSecret, "", 15*time.Minute)
	_, err = validator.ValidateAccessToken(tokenString)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	m := NewManager(testSecret, "", 15*time.Minute)
	tokenString, err := m.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	other := NewManager("a-completely-different-signing-key-22", "", 15*time.Minute)
	_, err = other.ValidateAccessToken(tokenString)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestValidateAccessToken_PreviousKeyAccepted(t *testing.T) {
	// Mint with the old key as current, then validate with a manager that
	// carries it as the previous key.
	old := NewManager(testOldSecret, "", 15*time.Minute)
	tokenString, err := old.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	// Rewrite the kid header to the previous slot, as a token minted before
	// rotation would carry.
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = kidPrevious
	tokenString, err = tok.SignedString([]byte(testOldSecret))
	require.NoError(t, err)

	rotated := NewManager(testSecret, testOldSecret, 15*time.Minute)
	got, err := rotated.ValidateAccessToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, claims.AccountID, got.AccountID)
}

func TestValidateAccessToken_UnknownKid(t *testing.T) {
	m := NewManager(testSecret, "", 15*time.Minute)

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	tok.Header["kid"] = "v99"
	tokenString, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(tokenString)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestValidateAccessToken_RejectsUnsignedAlg(t *testing.T) {
	m := NewManager(testSecret, "", 15*time.Minute)

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		AccountID: uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tokenString, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(tokenString)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	m := NewManager(testSecret, "", 15*time.Minute)
	_, err := m.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}
