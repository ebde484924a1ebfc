// Package google implementa el proveedor OAuth 2.0 de Google. Las cuentas se
// vinculan por email.
package google

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/tilgate/internal/oauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	Name = "google"

	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"
)

var DefaultScopes = []string{"profile", "email"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// Overrides (tests)
	HTTP        *http.Client
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

type Provider struct {
	oauth.Client
	userInfoURL string
}

func New(cfg Config) *Provider {
	ep := endpoints.Google
	if cfg.Endpoint != nil {
		ep = *cfg.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	ui := cfg.UserInfoURL
	if ui == "" {
		ui = DefaultUserInfoURL
	}
	return &Provider{
		Client: oauth.Client{
			Config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURL,
				Scopes:       scopes,
				Endpoint:     ep,
			},
			HTTP:    cfg.HTTP,
			Timeout: cfg.Timeout,
		},
		userInfoURL: ui,
	}
}

func (p *Provider) Name() string             { return Name }
func (p *Provider) MatchKey() oauth.MatchKey { return oauth.MatchByEmail }

type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// FetchProfile lee el userinfo de Google.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (oauth.Profile, error) {
	var ui userInfo
	if err := p.GetJSON(ctx, p.userInfoURL, accessToken, &ui); err != nil {
		return oauth.Profile{}, err
	}
	return oauth.Profile{Name: ui.Name, Email: ui.Email}, nil
}

var _ oauth.Provider = (*Provider)(nil)
