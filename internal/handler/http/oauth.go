package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
	"github.com/NipunKumar21/Encore-auth/pkg/httputil"
)

// GoogleBegin handles GET /api/v1/auth/google. It opens a federated login and
// returns the Google consent URL; the client performs the redirect itself.
func (h *AuthHandler) GoogleBegin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.service.BeginFederation(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"auth_url": authURL},
	})
}

// GoogleCallback handles GET /api/v1/auth/google/callback. Google redirects
// the user's browser here with the state and authorization code; every
// outcome sends the browser back to the client callback URL, carrying either
// the issued tokens or an error code.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("error") != "" {
		h.redirectToClient(w, r, url.Values{"error": {"PROVIDER_ERROR"}})
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		h.redirectToClient(w, r, url.Values{"error": {"INVALID_INPUT"}})
		return
	}

	result, err := h.service.CompleteFederation(r.Context(), state, code)
	if err != nil {
		h.redirectToClient(w, r, url.Values{"error": {errorCode(err)}})
		return
	}

	h.redirectToClient(w, r, url.Values{
		"access_token":  {result.Tokens.AccessToken},
		"refresh_token": {result.Tokens.RefreshToken},
		"expires_in":    {strconv.FormatInt(result.Tokens.ExpiresIn, 10)},
	})
}

func (h *AuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.clientCallbackURL+"?"+params.Encode(), http.StatusFound)
}

func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
