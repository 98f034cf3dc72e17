package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

func newChallengeTestFixture(t *testing.T) (*ChallengeRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewChallengeRepository(mock)
	return repo, mock
}

func sampleChallenge() *domain.TwoFactorChallenge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.TwoFactorChallenge{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		CodeHash:  "sha256-hex",
		Attempts:  0,
		ExpiresAt: now.Add(5 * time.Minute),
		CreatedAt: now,
	}
}

func TestChallengeRepository_Replace(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	c := sampleChallenge()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM two_factor_challenges").
		WithArgs(c.AccountID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO two_factor_challenges").
		WithArgs(c.ID, c.AccountID, c.CodeHash, c.Attempts, c.ExpiresAt, c.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Replace(context.Background(), c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_Replace_InsertFails(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	c := sampleChallenge()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM two_factor_challenges").
		WithArgs(c.AccountID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO two_factor_challenges").
		WithArgs(c.ID, c.AccountID, c.CodeHash, c.Attempts, c.ExpiresAt, c.CreatedAt).
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), c)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_IncrementAttempts(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectQuery("UPDATE two_factor_challenges SET attempts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(3))

	attempts, err := repo.IncrementAttempts(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_IncrementAttempts_Consumed(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectQuery("UPDATE two_factor_challenges SET attempts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}))

	_, err := repo.IncrementAttempts(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_Consume_Wins(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectExec("UPDATE two_factor_challenges SET consumed_at").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := repo.Consume(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepository_Consume_AlreadyConsumed(t *testing.T) {
	repo, mock := newChallengeTestFixture(t)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectExec("UPDATE two_factor_challenges SET consumed_at").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := repo.Consume(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}
