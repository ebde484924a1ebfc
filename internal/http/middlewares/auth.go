package middlewares

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/tilgate/internal/domain/types"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

const (
	AuthMethodBearer  = "bearer"
	AuthMethodSession = "session"

	// LoginPath es a donde se manda a un navegador sin sesión.
	LoginPath = "/login"
)

// LoadSession resuelve la cookie de sesión. Si hay sesión la deja en el
// contexto; si además está autenticada y la identidad sigue viva, deja la
// identidad. Nunca corta el request.
func LoadSession(m *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			h, err := m.Current(ctx, r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logger.From(ctx).Warn("session lookup failed", logger.Op("LoadSession"), logger.Err(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx = WithSession(ctx, h)

			if h.Authenticated() {
				u, err := m.Identity(ctx, h)
				switch {
				case err == nil:
					ctx = WithIdentity(ctx, u, AuthMethodSession)
					ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(u.ID)))
				case errors.Is(err, session.ErrNoSession):
					// identidad soft-deleted u hard-deleted: la sesión ya no vale
					_ = m.Store().Delete(ctx, h)
					ctx = WithSession(ctx, nil)
				default:
					logger.From(ctx).Warn("session identity lookup failed", logger.Op("LoadSession"), logger.Err(err))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession exige una identidad resuelta por LoadSession. Sin ella,
// redirige a /login (flujo navegador).
func RequireSession() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetIdentity(r.Context()) == nil {
				helpers.Redirect(w, r, LoginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBearer valida Authorization: Bearer <token> contra el TokenService.
// Token ausente, desconocido, expirado o de una identidad borrada => 401.
func RequireBearer(tokens *auth.TokenService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := helpers.BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			u, err := tokens.Authenticate(r.Context(), raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				if errors.Is(err, auth.ErrUnauthenticated) {
					httperrors.WriteError(w, httperrors.ErrTokenInvalid)
					return
				}
				httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
				return
			}

			ctx := WithIdentity(r.Context(), u, AuthMethodBearer)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(u.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAction corta con 403 si la identidad del contexto no puede
// ejecutar action. Va después de RequireBearer o RequireSession.
func RequireAction(action types.Action) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := GetIdentity(r.Context())
			if u == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if err := types.Authorize(u.Role, action); err != nil {
				logger.From(r.Context()).Warn("action denied",
					logger.Op("RequireAction"),
					logger.String("action", action.String()),
					logger.Role(u.Role.String()),
				)
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
