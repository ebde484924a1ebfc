package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tilgate/internal/domain/types"
	socialctrl "github.com/dropDatabas3/tilgate/internal/http/controllers/social"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
)

// registerWebRoutes: páginas server-side con sesión por cookie.
func registerWebRoutes(web chi.Router, d Deps) {
	web.Use(
		mw.WithSecurityHeaders(true),
		mw.WithNoStore(),
		mw.LoadSession(d.Sessions),
	)

	web.Get("/", d.Acronyms.Index)

	web.Get("/login", d.Session.Page)
	web.With(limit(d.LoginLimiter)).Post("/login", d.Session.Login)
	web.Post("/logout", d.Session.Logout)

	web.Get("/register", d.Auth.Register.Page)
	web.With(limit(d.LoginLimiter)).Post("/register", d.Auth.Register.Submit)

	for _, p := range d.Providers {
		web.Get(socialctrl.StartPath(p), d.Social.Start(p))
		web.Get(socialctrl.CallbackPath(p), d.Social.Callback(p))
	}

	web.Get("/forgottenPassword", d.Email.ForgotPage)
	web.With(limit(d.ForgotLimiter)).Post("/forgottenPassword", d.Email.Forgot)
	web.Get("/resetPassword", d.Email.ResetPage)
	web.Post("/resetPassword", d.Email.Reset)

	web.Group(func(p chi.Router) {
		p.Use(mw.RequireSession())
		csrf := mw.RequireCSRF(d.CSRF)

		p.Get("/acronyms/create", d.Acronyms.CreatePage)
		p.With(csrf).Post("/acronyms/create", d.Acronyms.Create)
		p.Get("/acronyms/{id}/edit", d.Acronyms.EditPage)
		p.With(csrf).Post("/acronyms/{id}/edit", d.Acronyms.Edit)

		// rol antes que CSRF: un no-admin recibe 403 aunque no tenga token
		p.With(mw.RequireAction(types.ActionSoftDeleteUser), csrf).Post("/users/{id}/delete", d.Admin.Lifecycle.WebDelete)
		p.With(mw.RequireAction(types.ActionRestoreUser), csrf).Post("/users/{id}/restore", d.Admin.Lifecycle.WebRestore)
	})
}
