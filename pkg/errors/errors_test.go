package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	appErr := &AppError{Code: "X", Message: "failed", Status: 500, Err: base}

	assert.Contains(t, appErr.Error(), "X")
	assert.Contains(t, appErr.Error(), "failed")
	assert.ErrorIs(t, appErr, base)
}

func TestConstructors_MapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{"not found", NotFound("account", "a-1"), ErrNotFound, http.StatusNotFound},
		{"already exists", AlreadyExists("account", "email", "a@b.c"), ErrAlreadyExists, http.StatusConflict},
		{"invalid input", InvalidInput("bad"), ErrInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("nope"), ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), ErrForbidden, http.StatusForbidden},
		{"invalid credentials", InvalidCredentials(), ErrInvalidCredentials, http.StatusUnauthorized},
		{"challenge expired", ChallengeExpired(), ErrChallengeExpired, http.StatusUnauthorized},
		{"challenge invalid", ChallengeInvalid(), ErrChallengeInvalid, http.StatusUnauthorized},
		{"challenge exhausted", ChallengeExhausted(), ErrChallengeExhausted, http.StatusUnauthorized},
		{"token invalid", TokenInvalid(), ErrTokenInvalid, http.StatusUnauthorized},
		{"token expired", TokenExpired(), ErrTokenExpired, http.StatusUnauthorized},
		{"token revoked", TokenRevoked(), ErrTokenRevoked, http.StatusUnauthorized},
		{"family revoked", FamilyRevoked(), ErrFamilyRevoked, http.StatusUnauthorized},
		{"state mismatch", StateMismatch(), ErrStateMismatch, http.StatusUnauthorized},
		{"provider error", ProviderError(errors.New("upstream 500")), ErrProviderError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", ErrTokenRevoked)
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(wrapped))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestCredentialMessages_AreUniform(t *testing.T) {
	// Token failures must not leak which specific check failed.
	assert.Equal(t, TokenInvalid().Message, TokenExpired().Message)
	assert.Equal(t, TokenInvalid().Message, TokenRevoked().Message)
}
