package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NipunKumar21/Encore-auth/pkg/logger"
)

type fakeAuthServer struct {
	mux *http.ServeMux

	loginHandler   http.HandlerFunc
	verifyHandler  http.HandlerFunc
	refreshHandler http.HandlerFunc
	logoutCalls    int
	logoutBearer   string
	logoutBody     map[string]string
}

func newFakeAuthServer() *fakeAuthServer {
	s := &fakeAuthServer{mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/v1/auth/login-2fa", func(w http.ResponseWriter, r *http.Request) {
		s.loginHandler(w, r)
	})
	s.mux.HandleFunc("/api/v1/auth/2fa/verify", func(w http.ResponseWriter, r *http.Request) {
		s.verifyHandler(w, r)
	})
	s.mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshHandler(w, r)
	})
	s.mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.logoutCalls++
		s.logoutBearer = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&s.logoutBody)
		writeData(w, http.StatusOK, map[string]string{"message": "logged out"})
	})
	return s
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func sessionData(access, refresh string, expiresIn int64) map[string]any {
	return map[string]any{
		"requires_2fa": false,
		"account":      map[string]string{"id": "acc-1", "email": "jane@example.com", "role": "user"},
		"tokens": map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    expiresIn,
		},
	}
}

func newTestClient(t *testing.T, srv *fakeAuthServer) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)

	cfg := DefaultConfig(ts.URL + "/api/v1")
	cfg.MaxRetries = 0
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = time.Millisecond
	return New(cfg, logger.New("authclient-test", "error")), ts
}

func TestClientLogin_EstablishesSession(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jane@example.com", body["email"])
		writeData(w, http.StatusOK, sessionData("access-1", "refresh-1", 900))
	}
	client, _ := newTestClient(t, srv)

	result, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)
	assert.False(t, result.Requires2FA)
	require.NotNil(t, result.Session)
	assert.Equal(t, "access-1", result.Session.AccessToken())
	assert.Equal(t, "refresh-1", result.Session.RefreshToken())
	assert.Equal(t, "jane@example.com", result.Session.Email())
	assert.True(t, client.Session().Authenticated())
}

func TestClientLogin_InvalidCredentials(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	}
	client, _ := newTestClient(t, srv)

	_, err := client.Login(context.Background(), "jane@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
	assert.Nil(t, client.Session())
}

func TestClientLogin_TwoFactorFlow(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"requires_2fa": true,
			"challenge_id": "challenge-1",
		})
	}
	srv.verifyHandler = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "challenge-1", body["challenge_id"])
		assert.Equal(t, "123456", body["code"])
		writeData(w, http.StatusOK, sessionData("access-2fa", "refresh-2fa", 900))
	}
	client, _ := newTestClient(t, srv)

	result, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)
	assert.True(t, result.Requires2FA)
	assert.Equal(t, "challenge-1", result.ChallengeID)
	assert.Nil(t, result.Session)
	assert.Nil(t, client.Session())

	sess, err := client.VerifyTwoFactor(context.Background(), result.ChallengeID, "123456")
	require.NoError(t, err)
	assert.Equal(t, "access-2fa", sess.AccessToken())
	assert.True(t, client.Session().Authenticated())
}

func TestClientDo_AttachesBearerToken(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sessionData("access-1", "refresh-1", 900))
	}
	client, ts := newTestClient(t, srv)

	var gotAuth string
	srv.mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeData(w, http.StatusOK, map[string]string{"ok": "true"})
	})

	_, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/protected", nil)
	require.NoError(t, err)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer access-1", gotAuth)
}

func TestClientDo_RequiresSession(t *testing.T) {
	srv := newFakeAuthServer()
	client, ts := newTestClient(t, srv)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/protected", nil)
	require.NoError(t, err)

	_, err = client.Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClientDo_SilentlyRefreshesExpiringSession(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		// Expires inside the refresh margin, forcing a silent refresh.
		writeData(w, http.StatusOK, sessionData("access-old", "refresh-old", 5))
	}
	refreshCalls := 0
	srv.refreshHandler = func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-old", body["refresh_token"])
		writeData(w, http.StatusOK, map[string]any{
			"tokens": map[string]any{
				"access_token":  "access-new",
				"refresh_token": "refresh-new",
				"expires_in":    900,
			},
		})
	}
	client, ts := newTestClient(t, srv)

	var gotAuth string
	srv.mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeData(w, http.StatusOK, map[string]string{"ok": "true"})
	})

	_, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/protected", nil)
	require.NoError(t, err)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, "Bearer access-new", gotAuth)
	assert.Equal(t, "refresh-new", client.Session().RefreshToken())
}

func TestClientRefresh_RejectedClearsSession(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sessionData("access-1", "refresh-1", 5))
	}
	srv.refreshHandler = func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "FAMILY_REVOKED", "session revoked")
	}
	client, _ := newTestClient(t, srv)

	_, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	err = client.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, client.Session())
}

func TestClientLogout_RevokesAndClears(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sessionData("access-1", "refresh-1", 900))
	}
	client, _ := newTestClient(t, srv)

	_, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background()))
	assert.Equal(t, 1, srv.logoutCalls)
	assert.Equal(t, "Bearer access-1", srv.logoutBearer)
	assert.Equal(t, "refresh-1", srv.logoutBody["refresh_token"])
	assert.Nil(t, client.Session())
}

func TestClientLogout_ClearsSessionEvenOnServerError(t *testing.T) {
	srv := newFakeAuthServer()
	srv.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sessionData("access-1", "refresh-1", 900))
	}
	srv.mux = http.NewServeMux()
	srv.mux.HandleFunc("/api/v1/auth/login-2fa", srv.loginHandler)
	srv.mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "TOKEN_INVALID", "bad token")
	})
	client, _ := newTestClient(t, srv)

	_, err := client.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	err = client.Logout(context.Background())
	require.Error(t, err)
	assert.Nil(t, client.Session())
}

func TestClientLogout_NoSessionIsNoop(t *testing.T) {
	srv := newFakeAuthServer()
	client, _ := newTestClient(t, srv)

	require.NoError(t, client.Logout(context.Background()))
	assert.Equal(t, 0, srv.logoutCalls)
}
