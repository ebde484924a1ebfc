// Package session contiene los controllers del login web por formulario.
package session

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	"github.com/dropDatabas3/tilgate/internal/http/services/auth"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/http/views"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

const maxFormBody = 16 << 10

// LoginController handles GET/POST /login y POST /logout.
type LoginController struct {
	sessions  *svc.Manager
	views     views.Renderer
	providers []string
}

// NewLoginController: providers son los nombres que se listan como botones
// de login federado.
func NewLoginController(sessions *svc.Manager, r views.Renderer, providers []string) *LoginController {
	return &LoginController{sessions: sessions, views: r, providers: providers}
}

// Page renderiza el formulario; ?error=true muestra el aviso de credenciales.
func (c *LoginController) Page(w http.ResponseWriter, r *http.Request) {
	page := views.LoginPage{
		Page:       views.Page{Title: "Log In", Viewer: mw.GetIdentity(r.Context())},
		LoginError: r.URL.Query().Get("error") == "true",
		Providers:  c.providers,
	}
	if err := c.views.Render(w, http.StatusOK, views.PageLogin, page); err != nil {
		logger.From(r.Context()).Error("render failed", logger.Op("LoginController.Page"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

// Login verifica el formulario y abre sesión. Falla => /login?error=true.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"), logger.AuthMethod("form"))

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		helpers.Redirect(w, r, "/login?error=true")
		return
	}

	u, err := c.sessions.AuthenticateWithCredentials(ctx, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Error("credential check failed", logger.Err(err))
		}
		metrics.LoginsTotal.WithLabelValues("form", metrics.OutcomeFailure).Inc()
		helpers.Redirect(w, r, "/login?error=true")
		return
	}

	if _, err := c.sessions.Establish(ctx, w, r, u); err != nil {
		log.Error("session establish failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	metrics.LoginsTotal.WithLabelValues("form", metrics.OutcomeSuccess).Inc()
	helpers.Redirect(w, r, "/")
}

// Logout destruye la sesión del request.
func (c *LoginController) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.sessions.Destroy(r.Context(), w, r); err != nil {
		logger.From(r.Context()).Warn("session destroy failed", logger.Op("LoginController.Logout"), logger.Err(err))
	}
	helpers.Redirect(w, r, "/")
}
