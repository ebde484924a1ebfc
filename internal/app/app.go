// Package app arma la aplicación: services, controllers y router a partir de
// la config y de las dependencias ya abiertas (store, cache, mailer).
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/config"
	mail "github.com/dropDatabas3/tilgate/internal/email"
	acronymsctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/acronyms"
	adminctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/auth"
	emailctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/email"
	healthctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/health"
	sessionctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/session"
	socialctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/social"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/http/router"
	"github.com/dropDatabas3/tilgate/internal/http/services/acronyms"
	svcadmin "github.com/dropDatabas3/tilgate/internal/http/services/admin"
	svcauth "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	svcemail "github.com/dropDatabas3/tilgate/internal/http/services/email"
	"github.com/dropDatabas3/tilgate/internal/http/services/security"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/http/services/social"
	"github.com/dropDatabas3/tilgate/internal/http/services/users"
	"github.com/dropDatabas3/tilgate/internal/http/views"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/oauth"
	"github.com/dropDatabas3/tilgate/internal/oauth/github"
	"github.com/dropDatabas3/tilgate/internal/oauth/google"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/rate"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
)

const (
	stateTTL = 10 * time.Minute
	// límite de claves por limiter en memoria
	rateMaxKeys = 10000
)

// Deps holds raw dependencies required to build the app.
type Deps struct {
	Config *config.Config
	Store  *store.Store
	Cache  cache.Client
	Mailer mail.Sender

	// Overrides (tests)
	Providers []oauth.Provider
	Hasher    password.Params
	Renderer  views.Renderer
	Registry  prometheus.Registerer
}

// App represents the wired application.
type App struct {
	Handler http.Handler

	Credentials *svcauth.CredentialService
	Tokens      *svcauth.TokenService
	Sessions    *session.Manager
	Reset       *svcemail.ResetService
	Lifecycle   *svcadmin.LifecycleService
	Federation  *social.FederationService
	CSRF        *security.CSRFService
}

// New creates and wires the application.
func New(ctx context.Context, d Deps) (*App, error) {
	if d.Config == nil || d.Store == nil || d.Cache == nil {
		return nil, errors.New("app: config, store and cache are required")
	}
	cfg := d.Config
	log := logger.From(ctx).With(logger.Layer("app"), logger.Op("New"))

	if d.Mailer == nil {
		d.Mailer = mail.LogSender{}
	}
	if d.Hasher.KeyLen == 0 {
		d.Hasher = password.Default
	}
	if d.Registry == nil {
		d.Registry = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(d.Registry); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	// 1. Services
	authSvcs := svcauth.NewServices(svcauth.Deps{
		Users:    d.Store.Users,
		Tokens:   d.Store.Tokens,
		Hasher:   d.Hasher,
		Policy:   policy,
		TokenTTL: cfg.Auth.TokenTTL,
	})

	sessions := session.NewManager(session.Deps{
		Store:       session.NewStore(d.Cache, cfg.Auth.Session.TTL),
		Users:       d.Store.Users,
		Credentials: authSvcs.Credentials,
		Cookie: helpers.CookieOptions{
			Name:     cfg.Auth.Session.CookieName,
			Domain:   cfg.Auth.Session.Domain,
			SameSite: cfg.Auth.Session.SameSite,
			Secure:   cfg.Auth.Session.Secure,
		},
	})
	csrf := security.NewCSRFService(sessions)

	reset := svcemail.NewResetService(svcemail.ResetDeps{
		Users:    d.Store.Users,
		Resets:   d.Store.ResetTokens,
		Tokens:   authSvcs.Tokens,
		Sessions: sessions,
		Mailer:   d.Mailer,
		BaseURL:  cfg.App.BaseURL,
		TTL:      cfg.Auth.Reset.TTL,
		Hasher:   d.Hasher,
		Policy:   policy,
	})

	lifecycle := svcadmin.NewLifecycleService(svcadmin.LifecycleDeps{
		Users:    d.Store.Users,
		Tokens:   authSvcs.Tokens,
		Sessions: sessions,
	})
	usersSvc := users.NewService(d.Store.Users)
	acronymsSvc := acronyms.NewService(d.Store.Acronyms)

	providers := d.Providers
	if providers == nil {
		providers = buildProviders(cfg)
	}
	registry := oauth.NewRegistry(providers...)
	stateKey, err := stateSigningKey(cfg)
	if err != nil {
		return nil, err
	}
	federation := social.NewFederationService(social.Deps{
		Providers: registry,
		State:     oauth.NewStateSigner(stateKey, stateTTL),
		Users:     d.Store.Users,
		Sessions:  sessions,
		Hasher:    d.Hasher,
	})

	// 2. Controllers
	renderer := d.Renderer
	if renderer == nil {
		html, err := views.New()
		if err != nil {
			return nil, fmt.Errorf("app: views: %w", err)
		}
		renderer = html
	}

	loginLimiter, forgotLimiter, err := buildLimiters(cfg, d.Cache)
	if err != nil {
		return nil, err
	}
	trusted, err := helpers.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	r := router.New(router.Deps{
		Auth:      authctrl.NewControllers(authSvcs, sessions, renderer),
		Admin:     adminctrl.NewControllers(usersSvc, lifecycle),
		Session:   sessionctrl.NewLoginController(sessions, renderer, registry.Names()),
		Social:    socialctrl.NewController(federation),
		Email:     emailctrl.NewFlowsController(reset, sessions, renderer),
		Acronyms:  acronymsctrl.NewController(acronymsSvc, usersSvc, csrf, renderer),
		Health:    healthctrl.NewController(map[string]healthctrl.Pinger{"store": d.Store, "cache": d.Cache}),
		Providers: registry.Names(),

		Sessions: sessions,
		Tokens:   authSvcs.Tokens,
		CSRF:     csrf,

		LoginLimiter:  loginLimiter,
		ForgotLimiter: forgotLimiter,

		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		TrustedProxies:     trusted,
	})

	// 3. /metrics en el server principal salvo que tenga listener propio
	if cfg.Server.MetricsAddr == "" {
		h, err := metrics.Handler()
		if err != nil {
			return nil, fmt.Errorf("app: metrics handler: %w", err)
		}
		r.Handle("/metrics", h)
	}

	log.Info("app wired",
		logger.String("storage", d.Store.Driver),
		logger.Any("providers", registry.Names()),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
	)

	return &App{
		Handler:     r,
		Credentials: authSvcs.Credentials,
		Tokens:      authSvcs.Tokens,
		Sessions:    sessions,
		Reset:       reset,
		Lifecycle:   lifecycle,
		Federation:  federation,
		CSRF:        csrf,
	}, nil
}

func buildPolicy(cfg *config.Config) (password.Policy, error) {
	pp := cfg.Security.PasswordPolicy
	bl, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return password.Policy{}, fmt.Errorf("app: password blacklist: %w", err)
	}
	return password.Policy{
		MinLength:     pp.MinLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
		Blacklist:     bl,
	}, nil
}

func buildProviders(cfg *config.Config) []oauth.Provider {
	var out []oauth.Provider
	timeout := cfg.Providers.Timeout
	if g := cfg.Providers.Google; g.Enabled {
		out = append(out, google.New(google.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			Scopes:       g.Scopes,
			Timeout:      timeout,
		}))
	}
	if gh := cfg.Providers.GitHub; gh.Enabled {
		out = append(out, github.New(github.Config{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			RedirectURL:  gh.RedirectURL,
			Scopes:       gh.Scopes,
			Timeout:      timeout,
		}))
	}
	return out
}

// stateSigningKey: en dev sin clave configurada se genera una efímera; los
// states en vuelo no sobreviven a un reinicio.
func stateSigningKey(cfg *config.Config) ([]byte, error) {
	if cfg.Security.StateSigningKey != "" {
		return []byte(cfg.Security.StateSigningKey), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("app: state key: %w", err)
	}
	return key, nil
}

// buildLimiters usa redis si el cache es redis (límite compartido entre
// réplicas); si no, token buckets en memoria.
func buildLimiters(cfg *config.Config, c cache.Client) (login, forgot rate.Limiter, err error) {
	if !cfg.Rate.Enabled {
		return nil, nil, nil
	}
	if rc, ok := c.(*cache.RedisClient); ok {
		prefix := cfg.Cache.Redis.Prefix + ":rl:"
		login = rate.NewRedisLimiter(rc.Raw(), prefix+"login:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		forgot = rate.NewRedisLimiter(rc.Raw(), prefix+"forgot:", cfg.Rate.Forgot.Limit, cfg.Rate.Forgot.Window)
		return login, forgot, nil
	}
	ml, err := rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.Rate.Login.Window, rateMaxKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("app: login limiter: %w", err)
	}
	mf, err := rate.NewMemoryLimiter(cfg.Rate.Forgot.Limit, cfg.Rate.Forgot.Window, rateMaxKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("app: forgot limiter: %w", err)
	}
	return ml, mf, nil
}
