package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/dropDatabas3/tilgate/internal/domain/types"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
)

// registerAPIRoutes: todo bajo /api responde JSON. Solo /users/login acepta
// Basic; el resto exige bearer.
func registerAPIRoutes(api chi.Router, d Deps) {
	api.Use(
		cors.Handler(DefaultCORSOptions(d.CORSAllowedOrigins)),
		mw.WithSecurityHeaders(false),
		mw.WithNoStore(),
	)

	// POST /api/users/login - Basic -> bearer token
	api.With(limit(d.LoginLimiter)).Post("/users/login", d.Auth.Login.Login)

	api.Group(func(p chi.Router) {
		p.Use(mw.RequireBearer(d.Tokens))

		p.Get("/users", d.Admin.Users.List)
		p.Get("/users/me", d.Auth.Me.Me)
		p.Get("/users/{id}", d.Admin.Users.Get)
		p.With(mw.RequireAction(types.ActionCreateUser)).Post("/users", d.Auth.Register.Create)

		p.Delete("/tokens/current", d.Auth.Tokens.RevokeCurrent)

		// ciclo de vida: el service vuelve a autorizar con el rol del actor
		p.Delete("/users/{id}", d.Admin.Lifecycle.SoftDelete)
		p.Post("/users/{id}/restore", d.Admin.Lifecycle.Restore)
		p.Delete("/users/{id}/force", d.Admin.Lifecycle.HardDelete)
		p.Put("/users/{id}/role", d.Admin.Lifecycle.SetRole)
	})
}
