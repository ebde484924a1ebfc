// Package router arma el chi.Router con las rutas API (/api, bearer) y web
// (sesión por cookie, CSRF en formularios).
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	acronymsctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/acronyms"
	adminctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/auth"
	emailctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/email"
	healthctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/health"
	sessionctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/session"
	socialctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/social"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	svcauth "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/security"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/rate"
)

// Deps contiene controllers, services que usan los middlewares y limiters.
type Deps struct {
	Auth     *authctrl.Controllers
	Admin    *adminctrl.Controllers
	Session  *sessionctrl.LoginController
	Social   *socialctrl.Controller
	Email    *emailctrl.FlowsController
	Acronyms *acronymsctrl.Controller
	Health   *healthctrl.Controller

	// Providers habilitados; cada uno monta /login-<p> y /oauth/<p>.
	Providers []string

	Sessions *session.Manager
	Tokens   *svcauth.TokenService
	CSRF     *security.CSRFService

	// Opcionales: nil desactiva el límite.
	LoginLimiter  rate.Limiter
	ForgotLimiter rate.Limiter

	CORSAllowedOrigins []string

	// Proxies cuyo X-Forwarded-For se respeta; vacío = solo RemoteAddr.
	TrustedProxies helpers.TrustedProxies
}

// DefaultCORSOptions: la API usa bearer, no cookies; sin credentials.
func DefaultCORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}
}

// New arma el router completo.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithMetrics(),
		mw.WithLogging(),
	)

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}

	r.Route("/api", func(api chi.Router) {
		registerAPIRoutes(api, d)
	})
	r.Group(func(web chi.Router) {
		registerWebRoutes(web, d)
	})
	return r
}

func limit(l rate.Limiter) mw.Middleware {
	return mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: l,
		KeyFunc: mw.IPPathRateKey,
		Methods: []string{http.MethodPost},
	})
}
