package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/service"
	"github.com/NipunKumar21/Encore-auth/pkg/httputil"
	"github.com/NipunKumar21/Encore-auth/pkg/validator"
)

// AdminHandler handles HTTP requests for administrative endpoints.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// UpdateRoleRequest is the JSON request body for a role change.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// ListAccounts handles GET /api/v1/admin/accounts
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.NewPaginatedResponse(accounts, total, page, perPage),
	})
}

// UpdateRole handles PUT /api/v1/admin/accounts/{id}/role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	actorID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	accountID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateRoleRequest
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

	if err := h.service.UpdateAccountRole(r.Context(), actorID, accountID, domain.Role(req.Role)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"id": accountID.String(), "role": req.Role},
	})
}

// Deactivate handles DELETE /api/v1/admin/accounts/{id}. Accounts are
// soft-disabled, never deleted.
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	accountID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), actorID, accountID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"id": accountID.String(), "status": "deactivated"},
	})
}

// Reactivate handles POST /api/v1/admin/accounts/{id}/reactivate
func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireAccountID(w, r)
	if !ok {
		return
	}

	accountID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.ReactivateAccount(r.Context(), actorID, accountID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"id": accountID.String(), "status": "active"},
	})
}
