package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/service"
	"github.com/NipunKumar21/Encore-auth/pkg/httputil"
	"github.com/NipunKumar21/Encore-auth/pkg/middleware"
	"github.com/NipunKumar21/Encore-auth/pkg/validator"
)

// AuthHandler handles HTTP requests for session endpoints.
type AuthHandler struct {
	service           *service.AuthService
	clientCallbackURL string
	logger            *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler. clientCallbackURL is where
// the federation callback sends the browser back to.
func NewAuthHandler(svc *service.AuthService, clientCallbackURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, clientCallbackURL: clientCallbackURL, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyTwoFactorRequest is the JSON request body for redeeming a challenge.
type VerifyTwoFactorRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,uuid"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

// RefreshRequest is the JSON request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest is the JSON request body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// --- Response types ---

// LoginResponse is the outcome of a login attempt. When the account has a
// second factor enabled only the challenge fields are set; otherwise the
// session is established immediately.
type LoginResponse struct {
	Requires2FA bool              `json:"requires_2fa"`
	ChallengeID string            `json:"challenge_id,omitempty"`
	Account     *domain.Account   `json:"account,omitempty"`
	Tokens      *domain.TokenPair `json:"tokens,omitempty"`
}

// TokensResponse wraps a refreshed token pair.
type TokensResponse struct {
	Tokens *domain.TokenPair `json:"tokens"`
}

func loginResponseFrom(result *service.LoginResult) LoginResponse {
	resp := LoginResponse{Requires2FA: result.Requires2FA}
	if result.Requires2FA {
		resp.ChallengeID = result.ChallengeID.String()
		return resp
	}
	resp.Account = result.Account
	resp.Tokens = result.Tokens
	return resp
}

// --- Handlers ---

// Login handles POST /api/v1/auth/login-2fa
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: loginResponseFrom(result)})
}

// VerifyTwoFactor handles POST /api/v1/auth/2fa/verify
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid challenge id"},
		})
		return
	}

	result, err := h.service.VerifyTwoFactor(r.Context(), challengeID, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: loginResponseFrom(result)})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: TokensResponse{Tokens: tokens}})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	accountID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.Logout(r.Context(), accountID, req.RefreshToken); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "logged out"},
	})
}

// requireAccountID pulls the authenticated account ID out of the request
// context. It writes a 401 and returns false when the auth middleware did not
// run or the ID is malformed.
func requireAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return uuid.Nil, false
	}
	return id, true
}
