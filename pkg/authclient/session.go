package authclient

import (
	"sync"
	"time"
)

// Session holds the token pair for an authenticated account. It is safe for
// concurrent use; the client reads it on every request and swaps it on
// refresh.
type Session struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	accountID    string
	email        string
	role         string
	expiresAt    time.Time
}

// NewSession creates a session from an issued token pair.
func NewSession(accessToken, refreshToken, accountID, email, role string, expiresAt time.Time) *Session {
	return &Session{
		accessToken:  accessToken,
		refreshToken: refreshToken,
		accountID:    accountID,
		email:        email,
		role:         role,
		expiresAt:    expiresAt,
	}
}

// AccessToken returns the current access token, or "" when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// AccountID returns the authenticated account ID.
func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}

// Email returns the authenticated account email.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Role returns the account role for access gating.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Authenticated reports whether the session currently holds tokens.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

// ExpiresSoon reports whether the access token expires within the margin.
func (s *Session) ExpiresSoon(margin time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Until(s.expiresAt) < margin
}

// rotate swaps in a fresh token pair.
func (s *Session) rotate(accessToken, refreshToken string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.expiresAt = expiresAt
}

// clear wipes all session state.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.accountID = ""
	s.email = ""
	s.role = ""
	s.expiresAt = time.Time{}
}
