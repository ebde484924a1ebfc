package auth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// TokensController handles DELETE /api/tokens/current.
type TokensController struct {
	tokens *svc.TokenService
}

func NewTokensController(tokens *svc.TokenService) *TokensController {
	return &TokensController{tokens: tokens}
}

// RevokeCurrent revoca el token con el que se autenticó el request.
func (c *TokensController) RevokeCurrent(w http.ResponseWriter, r *http.Request) {
	raw, ok := helpers.BearerToken(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	if err := c.tokens.Revoke(r.Context(), raw); err != nil {
		logger.From(r.Context()).Error("token revoke failed",
			logger.Layer("controller"),
			logger.Op("TokensController.RevokeCurrent"),
			logger.Err(err),
		)
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	metrics.TokensRevokedTotal.Inc()
	w.WriteHeader(http.StatusNoContent)
}
