package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Auth-specific sentinel errors. Handlers map all of these to uniform,
// non-enumerating client messages; the specific kind is only logged.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrChallengeInvalid   = errors.New("challenge invalid")
	ErrChallengeExhausted = errors.New("challenge exhausted")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrFamilyRevoked      = errors.New("token family revoked")
	ErrStateMismatch      = errors.New("state mismatch")
	ErrProviderError      = errors.New("provider error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredentials creates a 401 error with a uniform message that does not
// reveal whether the email exists or which part of the credentials was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// ChallengeExpired creates a 401 error for an expired two-factor challenge.
func ChallengeExpired() *AppError {
	return &AppError{
		Code:    "CHALLENGE_EXPIRED",
		Message: "verification code expired, please log in again",
		Status:  http.StatusUnauthorized,
		Err:     ErrChallengeExpired,
	}
}

// ChallengeInvalid creates a 401 error for a wrong code or unknown challenge.
func ChallengeInvalid() *AppError {
	return &AppError{
		Code:    "CHALLENGE_INVALID",
		Message: "invalid verification code",
		Status:  http.StatusUnauthorized,
		Err:     ErrChallengeInvalid,
	}
}

// ChallengeExhausted creates a 401 error when the attempt ceiling is exceeded.
func ChallengeExhausted() *AppError {
	return &AppError{
		Code:    "CHALLENGE_EXHAUSTED",
		Message: "too many attempts, please log in again",
		Status:  http.StatusUnauthorized,
		Err:     ErrChallengeExhausted,
	}
}

// TokenInvalid creates a 401 error for a malformed or unknown token.
func TokenInvalid() *AppError {
	return &AppError{
		Code:    "TOKEN_INVALID",
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenInvalid,
	}
}

// TokenExpired creates a 401 error for a token past its embedded expiry.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenExpired,
	}
}

// TokenRevoked creates a 401 error for a revoked refresh token.
func TokenRevoked() *AppError {
	return &AppError{
		Code:    "TOKEN_REVOKED",
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenRevoked,
	}
}

// FamilyRevoked creates a 401 error when an entire session family has been
// revoked. The client must perform a fresh full login.
func FamilyRevoked() *AppError {
	return &AppError{
		Code:    "FAMILY_REVOKED",
		Message: "session revoked, please log in again",
		Status:  http.StatusUnauthorized,
		Err:     ErrFamilyRevoked,
	}
}

// StateMismatch creates a 401 error for an unknown or reused OAuth state value.
func StateMismatch() *AppError {
	return &AppError{
		Code:    "STATE_MISMATCH",
		Message: "federation login could not be verified, please try again",
		Status:  http.StatusUnauthorized,
		Err:     ErrStateMismatch,
	}
}

// ProviderError creates a 502 error for an identity provider failure. Internal
// provider detail is never forwarded to the client.
func ProviderError(err error) *AppError {
	return &AppError{
		Code:    "PROVIDER_ERROR",
		Message: "federation login failed, please try again",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrProviderError, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrChallengeExhausted),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrFamilyRevoked),
		errors.Is(err, ErrStateMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrProviderError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
