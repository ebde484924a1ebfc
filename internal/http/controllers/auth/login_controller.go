package auth

import (
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/tilgate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// LoginController handles POST /api/users/login (HTTP Basic).
type LoginController struct {
	credentials *svc.CredentialService
	tokens      *svc.TokenService
}

func NewLoginController(credentials *svc.CredentialService, tokens *svc.TokenService) *LoginController {
	return &LoginController{credentials: credentials, tokens: tokens}
}

// Login verifica las credenciales Basic y emite un bearer token.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"), logger.AuthMethod("basic"))

	username, secret, ok := helpers.BasicCredentials(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
		metrics.LoginsTotal.WithLabelValues("basic", metrics.OutcomeFailure).Inc()
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("Authorization: Basic requerido"))
		return
	}

	u, err := c.credentials.VerifyCredentials(ctx, username, secret)
	if err != nil {
		if errors.Is(err, svc.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("basic", metrics.OutcomeFailure).Inc()
			w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
			httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
			return
		}
		log.Error("credential check failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	tok, err := c.tokens.Issue(ctx, u)
	if err != nil {
		log.Error("token issue failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	metrics.LoginsTotal.WithLabelValues("basic", metrics.OutcomeSuccess).Inc()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		ID:        tok.ID,
		Value:     tok.Value,
		UserID:    tok.UserID,
		TokenType: "Bearer",
		ExpiresAt: tok.ExpiresAt,
	})
}
