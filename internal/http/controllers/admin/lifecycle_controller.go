package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	dto "github.com/dropDatabas3/tilgate/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/admin"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// LifecycleController expone soft-delete, restore, hard-delete y cambio de
// rol. Los handlers API responden 204; los Web* redirigen al home.
type LifecycleController struct {
	service *svc.LifecycleService
}

func NewLifecycleController(service *svc.LifecycleService) *LifecycleController {
	return &LifecycleController{service: service}
}

// SoftDelete handles DELETE /api/users/{id}.
func (c *LifecycleController) SoftDelete(w http.ResponseWriter, r *http.Request) {
	c.apply(w, r, "SoftDelete", c.service.SoftDelete)
}

// Restore handles POST /api/users/{id}/restore.
func (c *LifecycleController) Restore(w http.ResponseWriter, r *http.Request) {
	c.apply(w, r, "Restore", c.service.Restore)
}

// HardDelete handles DELETE /api/users/{id}/force.
func (c *LifecycleController) HardDelete(w http.ResponseWriter, r *http.Request) {
	c.apply(w, r, "HardDelete", c.service.HardDelete)
}

// SetRole handles PUT /api/users/{id}/role.
func (c *LifecycleController) SetRole(w http.ResponseWriter, r *http.Request) {
	var req dto.RoleRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("role debe ser admin, standard o restricted"))
		return
	}
	ctx := r.Context()
	if err := c.service.SetRole(ctx, mw.GetIdentity(ctx), chi.URLParam(r, "id"), role); err != nil {
		writeLifecycleError(w, r, "LifecycleController.SetRole", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebDelete handles POST /users/{id}/delete.
func (c *LifecycleController) WebDelete(w http.ResponseWriter, r *http.Request) {
	c.applyWeb(w, r, "WebDelete", c.service.SoftDelete)
}

// WebRestore handles POST /users/{id}/restore.
func (c *LifecycleController) WebRestore(w http.ResponseWriter, r *http.Request) {
	c.applyWeb(w, r, "WebRestore", c.service.Restore)
}

type lifecycleOp func(ctx context.Context, actor *repository.User, id string) error

func (c *LifecycleController) apply(w http.ResponseWriter, r *http.Request, op string, fn lifecycleOp) {
	ctx := r.Context()
	if err := fn(ctx, mw.GetIdentity(ctx), chi.URLParam(r, "id")); err != nil {
		writeLifecycleError(w, r, "LifecycleController."+op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *LifecycleController) applyWeb(w http.ResponseWriter, r *http.Request, op string, fn lifecycleOp) {
	ctx := r.Context()
	if err := fn(ctx, mw.GetIdentity(ctx), chi.URLParam(r, "id")); err != nil {
		writeLifecycleError(w, r, "LifecycleController."+op, err)
		return
	}
	helpers.Redirect(w, r, "/")
}

func writeLifecycleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, svc.ErrForbidden):
		httperrors.WriteError(w, httperrors.ErrForbidden)
	case errors.Is(err, svc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case errors.Is(err, svc.ErrNotDeleted):
		httperrors.WriteError(w, httperrors.ErrNotDeleted)
	case errors.Is(err, svc.ErrUsernameTaken):
		httperrors.WriteError(w, httperrors.ErrUsernameTaken.WithDetail("otro usuario vivo tiene ese username"))
	case errors.Is(err, svc.ErrInvalidRole):
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("rol inválido"))
	default:
		logger.From(r.Context()).Error("lifecycle op failed", logger.Layer("controller"), logger.Op(op), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
