// Package acronyms contiene el home y los formularios de acrónimos, el
// recurso que protege el guard CSRF.
package acronyms

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/acronyms"
	"github.com/dropDatabas3/tilgate/internal/http/services/security"
	"github.com/dropDatabas3/tilgate/internal/http/services/users"
	"github.com/dropDatabas3/tilgate/internal/http/views"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// Controller handles GET /, GET/POST /acronyms/create y GET/POST /acronyms/{id}/edit.
type Controller struct {
	acronyms *svc.Service
	users    *users.Service
	csrf     *security.CSRFService
	views    views.Renderer
}

func NewController(a *svc.Service, u *users.Service, csrf *security.CSRFService, r views.Renderer) *Controller {
	return &Controller{acronyms: a, users: u, csrf: csrf, views: r}
}

// Index lista los acrónimos. Un admin ve además todos los usuarios (incluidos
// los soft-deleted) con sus formularios de borrar/restaurar.
func (c *Controller) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := mw.GetIdentity(ctx)

	list, err := c.acronyms.List(ctx)
	if err != nil {
		c.fail(w, r, "Index", err)
		return
	}
	page := views.IndexPage{
		Page:     views.Page{Title: "Home page", Viewer: viewer},
		Acronyms: list,
		Editable: make(map[string]bool, len(list)),
	}
	for i := range list {
		if svc.CanEdit(viewer, &list[i]) == nil {
			page.Editable[list[i].ID] = true
		}
	}

	if viewer != nil && types.Authorize(viewer.Role, types.ActionViewDeletedUsers) == nil {
		if page.Users, err = c.users.List(ctx, viewer, true); err != nil {
			c.fail(w, r, "Index", err)
			return
		}
		if page.CSRFToken, err = c.csrf.Issue(ctx, mw.GetSession(ctx)); err != nil {
			c.fail(w, r, "Index", err)
			return
		}
	}
	c.render(w, r, http.StatusOK, views.PageIndex, page)
}

// CreatePage renderiza el formulario con un token CSRF nuevo.
func (c *Controller) CreatePage(w http.ResponseWriter, r *http.Request) {
	c.renderForm(w, r, http.StatusOK, views.AcronymFormPage{Page: views.Page{Title: "Create An Acronym"}})
}

// Create corre detrás de RequireCSRF.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	short, long := r.PostForm.Get("short"), r.PostForm.Get("long")

	_, err := c.acronyms.Create(ctx, mw.GetIdentity(ctx), short, long)
	switch {
	case err == nil:
		helpers.Redirect(w, r, "/")
	case errors.Is(err, svc.ErrForbidden):
		httperrors.WriteError(w, httperrors.ErrForbidden)
	case errors.Is(err, svc.ErrMissingFields):
		c.renderForm(w, r, http.StatusBadRequest, views.AcronymFormPage{
			Page:    views.Page{Title: "Create An Acronym"},
			Acronym: &repository.Acronym{Short: short, Long: long},
			Message: "Both fields are required.",
		})
	default:
		c.fail(w, r, "Create", err)
	}
}

func (c *Controller) EditPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := c.acronyms.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		c.writeAcronymError(w, r, "EditPage", err)
		return
	}
	if err := svc.CanEdit(mw.GetIdentity(ctx), a); err != nil {
		httperrors.WriteError(w, httperrors.ErrForbidden)
		return
	}
	c.renderForm(w, r, http.StatusOK, views.AcronymFormPage{
		Page:    views.Page{Title: "Edit Acronym"},
		Editing: true,
		Acronym: a,
	})
}

// Edit corre detrás de RequireCSRF.
func (c *Controller) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	short, long := r.PostForm.Get("short"), r.PostForm.Get("long")

	_, err := c.acronyms.Update(ctx, mw.GetIdentity(ctx), id, short, long)
	if errors.Is(err, svc.ErrMissingFields) {
		c.renderForm(w, r, http.StatusBadRequest, views.AcronymFormPage{
			Page:    views.Page{Title: "Edit Acronym"},
			Editing: true,
			Acronym: &repository.Acronym{ID: id, Short: short, Long: long},
			Message: "Both fields are required.",
		})
		return
	}
	if err != nil {
		c.writeAcronymError(w, r, "Edit", err)
		return
	}
	helpers.Redirect(w, r, "/")
}

func (c *Controller) writeAcronymError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, svc.ErrNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case errors.Is(err, svc.ErrForbidden):
		httperrors.WriteError(w, httperrors.ErrForbidden)
	default:
		c.fail(w, r, op, err)
	}
}

// renderForm emite un token CSRF por render; el submit anterior queda inválido.
func (c *Controller) renderForm(w http.ResponseWriter, r *http.Request, status int, page views.AcronymFormPage) {
	ctx := r.Context()
	tok, err := c.csrf.Issue(ctx, mw.GetSession(ctx))
	if err != nil {
		c.fail(w, r, "renderForm", err)
		return
	}
	page.CSRFToken = tok
	page.Viewer = mw.GetIdentity(ctx)
	c.render(w, r, status, views.PageAcronymForm, page)
}

func (c *Controller) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := c.views.Render(w, status, name, data); err != nil {
		c.fail(w, r, "render", err)
	}
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.From(r.Context()).Error("acronyms controller failed",
		logger.Layer("controller"),
		logger.Op("AcronymsController."+op),
		logger.Err(err),
	)
	httperrors.WriteError(w, httperrors.ErrInternalServerError)
}
