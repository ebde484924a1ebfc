package auth

import (
	"net/http"

	dtoadmin "github.com/dropDatabas3/tilgate/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
)

// MeController handles GET /api/users/me.
type MeController struct{}

func NewMeController() *MeController { return &MeController{} }

func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	u := mw.GetIdentity(r.Context())
	if u == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dtoadmin.ToPublic(u))
}
