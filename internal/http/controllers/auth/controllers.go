// Package auth contiene los controllers de login por Basic, bearer tokens y
// registro (API y formulario web).
package auth

import (
	svc "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/http/views"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Login    *LoginController
	Tokens   *TokensController
	Me       *MeController
	Register *RegisterController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s svc.Services, sessions *session.Manager, r views.Renderer) *Controllers {
	return &Controllers{
		Login:    NewLoginController(s.Credentials, s.Tokens),
		Tokens:   NewTokensController(s.Tokens),
		Me:       NewMeController(),
		Register: NewRegisterController(s.Register, sessions, r),
	}
}
