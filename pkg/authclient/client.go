// Package authclient is the client-side guard for services and tools that
// authenticate against the auth server. It keeps a session with the issued
// token pair, attaches bearer credentials to outgoing requests, silently
// refreshes the pair when the access token is about to expire, and clears the
// session on logout.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrNotAuthenticated is returned when an operation requires a session and
// none is held.
var ErrNotAuthenticated = errors.New("authclient: not authenticated")

// ErrSessionExpired is returned when a silent refresh is rejected by the
// server; the caller must log in again.
var ErrSessionExpired = errors.New("authclient: session expired")

// Config holds client configuration.
type Config struct {
	BaseURL string

	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RefreshMargin triggers a silent refresh when the access token expires
	// within this window.
	RefreshMargin time.Duration

	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// DefaultConfig returns sensible client defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryWaitMin:   time.Second,
		RetryWaitMax:   5 * time.Second,
		RefreshMargin:  30 * time.Second,
		BreakerTimeout: 30 * time.Second,
	}
}

// Client talks to the auth server and guards outgoing requests with the
// held session.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger

	sessionMu sync.Mutex
	session   *Session
	refreshMu sync.Mutex
}

// New creates an auth client.
func New(cfg Config, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	settings := gobreaker.Settings{
		Name:    "authclient",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("auth server circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
	}
}

// Session returns the current session, or nil when logged out.
func (c *Client) Session() *Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.session
}

// LoginResult is the outcome of a password login. Either Requires2FA is set
// with a challenge ID, or the session has been established.
type LoginResult struct {
	Requires2FA bool
	ChallengeID string
	Session     *Session
}

type accountPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokensPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type loginPayload struct {
	Requires2FA bool            `json:"requires_2fa"`
	ChallengeID string          `json:"challenge_id,omitempty"`
	Account     *accountPayload `json:"account,omitempty"`
	Tokens      *tokensPayload  `json:"tokens,omitempty"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login starts a password login. When the account has a second factor
// enrolled, the result carries a challenge ID to pass to VerifyTwoFactor;
// otherwise the session is established immediately.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var payload loginPayload
	if err := c.postJSON(ctx, "/auth/login-2fa", "", body, &payload); err != nil {
		return nil, err
	}

	if payload.Requires2FA {
		return &LoginResult{Requires2FA: true, ChallengeID: payload.ChallengeID}, nil
	}
	sess, err := c.establish(payload.Account, payload.Tokens)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess}, nil
}

// VerifyTwoFactor completes a pending login challenge and establishes the
// session.
func (c *Client) VerifyTwoFactor(ctx context.Context, challengeID, code string) (*Session, error) {
	body := map[string]string{"challenge_id": challengeID, "code": code}

	var payload loginPayload
	if err := c.postJSON(ctx, "/auth/2fa/verify", "", body, &payload); err != nil {
		return nil, err
	}
	return c.establish(payload.Account, payload.Tokens)
}

func (c *Client) establish(account *accountPayload, tokens *tokensPayload) (*Session, error) {
	if account == nil || tokens == nil {
		return nil, fmt.Errorf("authclient: malformed login response")
	}
	sess := NewSession(
		tokens.AccessToken,
		tokens.RefreshToken,
		account.ID,
		account.Email,
		account.Role,
		time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second),
	)
	c.sessionMu.Lock()
	c.session = sess
	c.sessionMu.Unlock()
	return sess, nil
}

// Refresh rotates the token pair. Concurrent callers are serialized; only the
// first performs the round trip.
func (c *Client) Refresh(ctx context.Context) error {
	sess := c.Session()
	if sess == nil || !sess.Authenticated() {
		return ErrNotAuthenticated
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if !sess.ExpiresSoon(c.cfg.RefreshMargin) {
		return nil
	}

	body := map[string]string{"refresh_token": sess.RefreshToken()}

	var payload struct {
		Tokens *tokensPayload `json:"tokens"`
	}
	if err := c.postJSON(ctx, "/auth/refresh", "", body, &payload); err != nil {
		c.clearSession()
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if payload.Tokens == nil {
		c.clearSession()
		return fmt.Errorf("%w: malformed refresh response", ErrSessionExpired)
	}

	sess.rotate(
		payload.Tokens.AccessToken,
		payload.Tokens.RefreshToken,
		time.Now().Add(time.Duration(payload.Tokens.ExpiresIn)*time.Second),
	)
	return nil
}

// Logout revokes the session on the server and clears it locally. The local
// session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	sess := c.Session()
	if sess == nil || !sess.Authenticated() {
		return nil
	}

	body := map[string]string{"refresh_token": sess.RefreshToken()}
	err := c.postJSON(ctx, "/auth/logout", sess.AccessToken(), body, nil)
	c.clearSession()
	return err
}

func (c *Client) clearSession() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.session != nil {
		c.session.clear()
	}
	c.session = nil
}

// Do executes an outgoing request with the session's bearer token attached,
// silently refreshing the pair first when it is close to expiry.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	sess := c.Session()
	if sess == nil || !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	if sess.ExpiresSoon(c.cfg.RefreshMargin) {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken())
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if env.Error != nil {
		return fmt.Errorf("authclient: %s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("authclient: unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// do executes the request through the circuit breaker with retry on network
// errors and 5xx responses.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	return c.breaker.Execute(func() (*http.Response, error) {
		var resp *http.Response
		var err error

		for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
			if attempt > 0 {
				wait := c.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
				if wait > c.cfg.RetryWaitMax {
					wait = c.cfg.RetryWaitMax
				}
				select {
				case <-time.After(wait):
				case <-req.Context().Done():
					return nil, req.Context().Err()
				}
			}

			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}

			resp, err = c.httpClient.Do(req)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && attempt < c.cfg.MaxRetries {
					continue
				}
				return nil, fmt.Errorf("auth request failed after %d attempts: %w", attempt+1, err)
			}

			// Retry 5xx; auth failures and other 4xx are final.
			if resp.StatusCode >= 500 && attempt < c.cfg.MaxRetries {
				resp.Body.Close()
				continue
			}
			return resp, nil
		}
		return resp, err
	})
}
