// Package oauth define el contrato de los proveedores de identidad federada
// (Google, GitHub) y la clasificación de sus errores.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// MatchKey es el campo del perfil que se compara contra identity.username.
type MatchKey uint8

const (
	MatchByEmail MatchKey = iota + 1
	MatchByUsername
)

func (k MatchKey) String() string {
	switch k {
	case MatchByEmail:
		return "email"
	case MatchByUsername:
		return "username"
	default:
		return "unknown"
	}
}

var (
	// ErrProviderUnauthorized: el proveedor respondió 401. El flujo debe
	// reiniciarse desde el paso de autorización.
	ErrProviderUnauthorized = errors.New("oauth: provider rejected credentials")
	// ErrProviderFailure: cualquier otro non-2xx, error de red o timeout. Fatal.
	ErrProviderFailure = errors.New("oauth: provider request failed")
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	ErrEmptyMatchKey   = errors.New("oauth: profile has no value for match key")
)

// Profile es lo que el proveedor cuenta del usuario.
type Profile struct {
	Name  string
	Email string
	Login string // handle (GitHub)
}

// Key devuelve el valor del perfil según k.
func (p Profile) Key(k MatchKey) string {
	switch k {
	case MatchByEmail:
		return strings.TrimSpace(p.Email)
	case MatchByUsername:
		return strings.TrimSpace(p.Login)
	default:
		return ""
	}
}

// Provider es un proveedor OAuth 2.0 concreto.
type Provider interface {
	Name() string
	MatchKey() MatchKey
	AuthCodeURL(state string) string
	// Exchange canjea el code por un access token.
	Exchange(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)
}

// Registry indexa proveedores por nombre.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[strings.ToLower(name)]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Names devuelve los proveedores habilitados, ordenados.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ---- Cliente base compartido por los proveedores ----

// Client agrupa la config oauth2, el http.Client y el timeout por llamada.
type Client struct {
	Config  *oauth2.Config
	HTTP    *http.Client
	Timeout time.Duration
}

const DefaultTimeout = 10 * time.Second

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// AuthCodeURL arma la URL de autorización.
func (c *Client) AuthCodeURL(state string) string {
	return c.Config.AuthCodeURL(state)
}

// Exchange canjea el code con timeout propio.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient())

	tok, err := c.Config.Exchange(ctx, code)
	if err != nil {
		return "", Classify("token exchange", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access_token: %w", ErrProviderFailure)
	}
	return tok.AccessToken, nil
}

// GetJSON hace un GET autenticado con Bearer y decodifica el body en out.
func (c *Client) GetJSON(ctx context.Context, url, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %v: %w", err, ErrProviderFailure)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	op := "GET " + url
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusError(op, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return Classify(op+": decode", err)
	}
	return nil
}

// StatusError traduce un status non-2xx: 401 reinicia, el resto es fatal.
func StatusError(op string, status int) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%s: status %d: %w", op, status, ErrProviderUnauthorized)
	}
	return fmt.Errorf("%s: status %d: %w", op, status, ErrProviderFailure)
}

// Classify envuelve err en ErrProviderUnauthorized o ErrProviderFailure.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProviderUnauthorized) || errors.Is(err, ErrProviderFailure) {
		return err
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return StatusError(op, re.Response.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout: %w", op, ErrProviderFailure)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrProviderFailure)
}
