// Package social contiene los controllers del login federado (Google, GitHub).
package social

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/social"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/oauth"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// StartPath es la entrada de login de un proveedor: /login-<provider>.
func StartPath(provider string) string { return "/login-" + provider }

// CallbackPath es el redirect URI registrado en el proveedor: /oauth/<provider>.
func CallbackPath(provider string) string { return "/oauth/" + provider }

// Controller handles GET /login-<provider> y GET /oauth/<provider>.
type Controller struct {
	service *svc.FederationService
}

func NewController(service *svc.FederationService) *Controller {
	return &Controller{service: service}
}

// Start devuelve el handler que redirige al authorize del proveedor.
func (c *Controller) Start(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		url, err := c.service.Start(ctx, w, r, provider)
		if err != nil {
			if errors.Is(err, svc.ErrUnknownProvider) {
				httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("proveedor desconocido"))
				return
			}
			logger.From(ctx).Error("oauth start failed",
				logger.Layer("controller"),
				logger.Op("SocialController.Start"),
				logger.Provider(provider),
				logger.Err(err),
			)
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// Callback devuelve el handler del redirect URI. Un 401 del proveedor
// reinicia el flujo; cualquier otro fallo del proveedor es 502.
func (c *Controller) Callback(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Callback"), logger.Provider(provider))

		_, err := c.service.Callback(ctx, w, r, provider)
		switch {
		case err == nil:
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeSuccess).Inc()
			metrics.LoginsTotal.WithLabelValues(provider, metrics.OutcomeSuccess).Inc()
			helpers.Redirect(w, r, "/")
		case errors.Is(err, svc.ErrProviderUnauthorized):
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeRetry).Inc()
			log.Info("provider rejected credentials, restarting flow")
			http.Redirect(w, r, StartPath(provider), http.StatusFound)
		case errors.Is(err, svc.ErrAccessDenied):
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeDenied).Inc()
			helpers.Redirect(w, r, "/login?error=true")
		case errors.Is(err, svc.ErrIdentityDisabled):
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeFailure).Inc()
			metrics.LoginsTotal.WithLabelValues(provider, metrics.OutcomeFailure).Inc()
			helpers.Redirect(w, r, "/login?error=true")
		case errors.Is(err, svc.ErrInvalidState):
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeFailure).Inc()
			httperrors.WriteError(w, httperrors.ErrInvalidState)
		case errors.Is(err, svc.ErrUnknownProvider):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("proveedor desconocido"))
		case errors.Is(err, svc.ErrProviderFailure), errors.Is(err, oauth.ErrEmptyMatchKey):
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeFailure).Inc()
			log.Error("provider failure", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrBadGateway.WithDetail("el proveedor de identidad falló"))
		default:
			metrics.OAuthCallbacksTotal.WithLabelValues(provider, metrics.OutcomeFailure).Inc()
			log.Error("oauth callback failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
	}
}
