// Package oauth implements login federation against external identity
// providers.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/NipunKumar21/Encore-auth/pkg/errors"
)

// Profile is the subset of the provider identity the auth service needs.
type Profile struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
}

// Provider exchanges authorization codes for provider profiles.
type Provider interface {
	// AuthURL returns the provider consent URL carrying the given state.
	AuthURL(state string) string

	// Exchange redeems an authorization code and fetches the profile. The
	// round trips are bounded by the configured timeout; on timeout or any
	// provider failure the login fails closed.
	Exchange(ctx context.Context, code string) (*Profile, error)
}

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds Google federation configuration.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	ExchangeTimeout time.Duration
}

// GoogleProvider implements Provider against Google.
type GoogleProvider struct {
	oauth           *oauth2.Config
	userinfoURL     string
	exchangeTimeout time.Duration
}

// NewGoogleProvider creates a Google federation provider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL:     googleUserinfoURL,
		exchangeTimeout: cfg.ExchangeTimeout,
	}
}

// AuthURL returns the Google consent URL carrying the given state.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems the authorization code and fetches the user profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.exchangeTimeout)
	defer cancel()

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.ProviderError(fmt.Errorf("exchange code: %w", err))
	}

	profile, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, apperrors.ProviderError(err)
	}
	return profile, nil
}

type googleUserinfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (p *GoogleProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("userinfo missing subject or email")
	}

	return &Profile{
		ProviderID: info.ID,
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
	}, nil
}
