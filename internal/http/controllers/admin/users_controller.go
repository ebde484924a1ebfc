package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/tilgate/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	"github.com/dropDatabas3/tilgate/internal/http/services/users"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// UsersController handles GET /api/users y GET /api/users/{id}.
type UsersController struct {
	service *users.Service
}

func NewUsersController(service *users.Service) *UsersController {
	return &UsersController{service: service}
}

func includeDeleted(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
	return v
}

// List excluye soft-deleted salvo ?include_deleted=true (solo admin).
func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	withDeleted := includeDeleted(r)

	list, err := c.service.List(ctx, mw.GetIdentity(ctx), withDeleted)
	if err != nil {
		writeUsersError(w, r, "UsersController.List", err)
		return
	}
	if withDeleted {
		helpers.WriteJSON(w, http.StatusOK, dto.ToAdminList(list))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ToPublicList(list))
}

func (c *UsersController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	withDeleted := includeDeleted(r)

	u, err := c.service.Get(ctx, mw.GetIdentity(ctx), chi.URLParam(r, "id"), withDeleted)
	if err != nil {
		writeUsersError(w, r, "UsersController.Get", err)
		return
	}
	if withDeleted {
		helpers.WriteJSON(w, http.StatusOK, dto.ToAdmin(u))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ToPublic(u))
}

func writeUsersError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, users.ErrForbidden):
		httperrors.WriteError(w, httperrors.ErrForbidden)
	case errors.Is(err, users.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	default:
		logger.From(r.Context()).Error("users read failed", logger.Layer("controller"), logger.Op(op), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
