// Package social resuelve logins federados (Google, GitHub) a identidades
// locales y les abre sesión.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/tilgate/internal/audit"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/oauth"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/security/sanitize"
	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
	"golang.org/x/sync/singleflight"
)

const nonceBytes = 16

var (
	ErrInvalidState         = errors.New("invalid oauth state")
	ErrAccessDenied         = errors.New("user denied access at provider")
	ErrIdentityDisabled     = errors.New("federated identity is soft-deleted")
	ErrUnknownProvider      = oauth.ErrUnknownProvider
	ErrProviderUnauthorized = oauth.ErrProviderUnauthorized
	ErrProviderFailure      = oauth.ErrProviderFailure
)

// Sessions es lo que el flujo necesita del session.Manager.
type Sessions interface {
	Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Handle, error)
	Current(ctx context.Context, r *http.Request) (*session.Handle, error)
	Put(ctx context.Context, h *session.Handle, key, value string) error
	Take(ctx context.Context, h *session.Handle, key string) (string, error)
	Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, u *repository.User) (*session.Handle, error)
}

// Deps contiene las dependencias del FederationService.
type Deps struct {
	Providers *oauth.Registry
	State     *oauth.StateSigner
	Users     repository.UserRepository
	Sessions  Sessions
	Hasher    password.Params
	Sanitizer *sanitize.Text
}

type FederationService struct {
	deps Deps
	// Primeros logins concurrentes con la misma clave comparten una sola
	// resolución.
	group singleflight.Group
}

func NewFederationService(d Deps) *FederationService {
	if d.Hasher.KeyLen == 0 {
		d.Hasher = password.Default
	}
	if d.Sanitizer == nil {
		d.Sanitizer = sanitize.NewText()
	}
	return &FederationService{deps: d}
}

func nonceKey(provider string) string { return "OAUTH_NONCE_" + provider }

// Start prepara el redirect al authorize del proveedor: nonce en el bag de
// la sesión (anónima si hace falta) y state firmado que lo transporta.
func (s *FederationService) Start(ctx context.Context, w http.ResponseWriter, r *http.Request, provider string) (string, error) {
	p, err := s.deps.Providers.Get(provider)
	if err != nil {
		return "", err
	}
	h, err := s.deps.Sessions.Ensure(ctx, w, r)
	if err != nil {
		return "", err
	}
	nonce, err := tokens.GenerateOpaqueToken(nonceBytes)
	if err != nil {
		return "", err
	}
	if err := s.deps.Sessions.Put(ctx, h, nonceKey(p.Name()), nonce); err != nil {
		return "", err
	}
	state, err := s.deps.State.Sign(p.Name(), nonce)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return p.AuthCodeURL(state), nil
}

// Callback completa el flujo: valida state + nonce, canjea el code, lee el
// perfil, resuelve la identidad y abre sesión.
//
// ErrProviderUnauthorized => el caller reinicia desde Start.
// ErrProviderFailure => fatal.
func (s *FederationService) Callback(ctx context.Context, w http.ResponseWriter, r *http.Request, provider string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.federation"),
		logger.Op("Callback"),
		logger.Provider(provider),
	)

	p, err := s.deps.Providers.Get(provider)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Info("provider returned error", logger.String("error", e))
		if e == "access_denied" {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, e)
	}

	// Paso 1: state + nonce (single-use)
	claims, err := s.deps.State.Parse(q.Get("state"), p.Name())
	if err != nil {
		log.Debug("state rejected", logger.Err(err))
		return nil, ErrInvalidState
	}
	h, err := s.deps.Sessions.Current(ctx, r)
	if err != nil {
		return nil, ErrInvalidState
	}
	nonce, err := s.deps.Sessions.Take(ctx, h, nonceKey(p.Name()))
	if err != nil || !tokens.Equal(nonce, claims.Nonce) {
		log.Debug("nonce mismatch")
		return nil, ErrInvalidState
	}

	code := q.Get("code")
	if code == "" {
		return nil, ErrInvalidState
	}

	// Paso 2: code -> access token -> perfil
	accessToken, err := p.Exchange(ctx, code)
	if err != nil {
		log.Warn("token exchange failed", logger.Err(err))
		return nil, err
	}
	prof, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		log.Warn("profile fetch failed", logger.Err(err))
		return nil, err
	}

	// Paso 3: identidad local
	u, err := s.Resolve(ctx, p, prof)
	if err != nil {
		return nil, err
	}

	// Paso 4: sesión
	if _, err := s.deps.Sessions.Establish(ctx, w, r, u); err != nil {
		log.Error("establish session failed", logger.Err(err))
		return nil, err
	}
	log.Info("federated login", logger.UserID(u.ID))
	return u, nil
}

// Resolve busca la identidad cuyo username coincide con la clave del
// proveedor; si no existe la crea con un secreto placeholder que nunca se
// comunica (el usuario solo entra por el proveedor).
func (s *FederationService) Resolve(ctx context.Context, p oauth.Provider, prof oauth.Profile) (*repository.User, error) {
	key := prof.Key(p.MatchKey())
	if key == "" {
		return nil, fmt.Errorf("%w (%s by %s)", oauth.ErrEmptyMatchKey, p.Name(), p.MatchKey())
	}

	// La resolución compartida no debe morir si el primer caller cancela.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(p.Name()+":"+key, func() (any, error) {
		return s.findOrCreate(shared, p, prof, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.User), nil
}

func (s *FederationService) findOrCreate(ctx context.Context, p oauth.Provider, prof oauth.Profile, key string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.federation"),
		logger.Op("Resolve"),
		logger.Provider(p.Name()),
	)

	// Incluye soft-deleted: una identidad borrada por un admin no se
	// reemplaza por otra nueva con la misma clave.
	u, err := s.deps.Users.GetByUsernameIncludingDeleted(ctx, key)
	if err == nil {
		if u.Deleted() {
			log.Warn("login refused for soft-deleted identity", logger.UserID(u.ID))
			return nil, ErrIdentityDisabled
		}
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	hash, err := password.Hash(s.deps.Hasher, password.RandomPlaceholder())
	if err != nil {
		return nil, fmt.Errorf("hash placeholder: %w", err)
	}
	name := s.deps.Sanitizer.Clean(prof.Name)
	if name == "" {
		name = key
	}
	in := repository.CreateUserInput{
		Name:         name,
		Username:     key,
		PasswordHash: hash,
		Role:         types.RoleStandard,
	}
	if prof.Email != "" {
		email := prof.Email
		in.Email = &email
	}

	u, err = s.deps.Users.Create(ctx, in)
	if repository.IsConflict(err) {
		// Otra réplica lo creó entre el lookup y el insert
		u, err = s.deps.Users.GetByUsernameIncludingDeleted(ctx, key)
		if err != nil {
			return nil, err
		}
		if u.Deleted() {
			return nil, ErrIdentityDisabled
		}
		return u, nil
	}
	if err != nil {
		log.Error("create federated user failed", logger.Err(err))
		return nil, err
	}
	log.Info("federated user created", logger.UserID(u.ID))
	audit.Log(ctx, audit.EventFederatedCreated, logger.UserID(u.ID), logger.Provider(p.Name()))
	return u, nil
}
