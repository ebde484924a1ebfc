// Package github implementa el proveedor OAuth 2.0 de GitHub.
// GitHub no emite ID tokens: el perfil sale de /user y /user/emails.
// Las cuentas se vinculan por login.
package github

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tilgate/internal/oauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	Name = "github"

	DefaultAPIBase = "https://api.github.com"
)

var DefaultScopes = []string{"user:email"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// Overrides (tests)
	HTTP     *http.Client
	Endpoint *oauth2.Endpoint
	APIBase  string
}

type Provider struct {
	oauth.Client
	apiBase string
}

func New(cfg Config) *Provider {
	ep := endpoints.GitHub
	if cfg.Endpoint != nil {
		ep = *cfg.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
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
		apiBase: base,
	}
}

func (p *Provider) Name() string             { return Name }
func (p *Provider) MatchKey() oauth.MatchKey { return oauth.MatchByUsername }

type user struct {
	ID    int64   `json:"id"`
	Login string  `json:"login"`
	Name  *string `json:"name"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile lee /user y /user/emails. Sin nombre público el perfil queda
// con "null", igual que las cuentas ya existentes.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (oauth.Profile, error) {
	var u user
	if err := p.GetJSON(ctx, p.apiBase+"/user", accessToken, &u); err != nil {
		return oauth.Profile{}, err
	}
	var emails []emailInfo
	if err := p.GetJSON(ctx, p.apiBase+"/user/emails", accessToken, &emails); err != nil {
		return oauth.Profile{}, err
	}

	prof := oauth.Profile{Login: u.Login, Name: "null"}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		prof.Name = *u.Name
	}
	if len(emails) > 0 {
		prof.Email = emails[0].Email
	}
	return prof, nil
}

var _ oauth.Provider = (*Provider)(nil)
