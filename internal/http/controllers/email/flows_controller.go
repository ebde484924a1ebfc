// Package email contiene los controllers del flujo de recuperación de
// contraseña (forgottenPassword / resetPassword).
package email

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/email"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/http/views"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

const maxFormBody = 16 << 10

// FlowsController handles GET/POST /forgottenPassword y GET/POST /resetPassword.
type FlowsController struct {
	service  *svc.ResetService
	sessions *session.Manager
	views    views.Renderer
}

func NewFlowsController(service *svc.ResetService, sessions *session.Manager, r views.Renderer) *FlowsController {
	return &FlowsController{service: service, sessions: sessions, views: r}
}

func (c *FlowsController) ForgotPage(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, views.PageForgottenPassword, views.Page{Title: "Reset Your Password"})
}

// Forgot siempre responde con la misma página de confirmación, exista o no
// el email. Solo un fallo del mailer cambia la respuesta.
func (c *FlowsController) Forgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("formulario inválido"))
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	if email != "" {
		if err := c.service.RequestReset(ctx, email); err != nil {
			metrics.PasswordResetsTotal.WithLabelValues("request", metrics.OutcomeFailure).Inc()
			logger.From(ctx).Error("reset request failed",
				logger.Layer("controller"),
				logger.Op("FlowsController.Forgot"),
				logger.Err(err),
			)
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
			return
		}
	}
	metrics.PasswordResetsTotal.WithLabelValues("request", metrics.OutcomeSuccess).Inc()
	c.render(w, r, http.StatusOK, views.PageForgottenPasswordConfirmed, views.Page{Title: "Password Reset Email Sent"})
}

// ResetPage consume el token del link. Token inválido, usado o vencido
// redirige al home sin distinguir el motivo.
func (c *FlowsController) ResetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("FlowsController.ResetPage"))

	h, err := c.sessions.Ensure(ctx, w, r)
	if err != nil {
		log.Error("session ensure failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	if _, err := c.service.ValidateResetToken(ctx, h, r.URL.Query().Get("token")); err != nil {
		if !errors.Is(err, svc.ErrInvalidResetToken) {
			log.Error("reset token validation failed", logger.Err(err))
		}
		metrics.PasswordResetsTotal.WithLabelValues("validate", metrics.OutcomeFailure).Inc()
		helpers.Redirect(w, r, "/")
		return
	}
	metrics.PasswordResetsTotal.WithLabelValues("validate", metrics.OutcomeSuccess).Inc()
	c.render(w, r, http.StatusOK, views.PageResetPassword, views.ResetPasswordPage{Page: views.Page{Title: "Reset Password"}})
}

// Reset aplica el password nuevo. Éxito => /login (toda sesión del usuario
// quedó destruida).
func (c *FlowsController) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("FlowsController.Reset"))

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("formulario inválido"))
		return
	}

	_, err := c.service.Redeem(ctx, w, r, r.PostForm.Get("password"), r.PostForm.Get("confirmPassword"))
	if err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("redeem", metrics.OutcomeFailure).Inc()
		page := views.ResetPasswordPage{Page: views.Page{Title: "Reset Password"}}
		var pe *svc.PolicyError
		switch {
		case errors.Is(err, svc.ErrPasswordMismatch):
			page.Error = "Passwords did not match."
			c.render(w, r, http.StatusBadRequest, views.PageResetPassword, page)
		case errors.As(err, &pe):
			page.Error = "Password does not meet the policy: " + strings.Join(pe.Reasons, ", ")
			c.render(w, r, http.StatusBadRequest, views.PageResetPassword, page)
		case errors.Is(err, svc.ErrNoResetInProgress):
			helpers.Redirect(w, r, "/")
		default:
			log.Error("password reset failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}
	metrics.PasswordResetsTotal.WithLabelValues("redeem", metrics.OutcomeSuccess).Inc()
	helpers.Redirect(w, r, "/login")
}

func (c *FlowsController) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	switch p := data.(type) {
	case views.Page:
		p.Viewer = mw.GetIdentity(r.Context())
		data = p
	case views.ResetPasswordPage:
		p.Viewer = mw.GetIdentity(r.Context())
		data = p
	}
	if err := c.views.Render(w, status, name, data); err != nil {
		logger.From(r.Context()).Error("render failed", logger.Op("FlowsController.render"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
