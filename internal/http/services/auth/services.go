// Package auth contiene la verificación de credenciales, el registro de
// identidades y el servicio de bearer tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/security/password"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUsernameTaken      = errors.New("username taken")
)

// Deps contiene las dependencias para crear los services auth.
type Deps struct {
	Users    repository.UserRepository
	Tokens   repository.TokenRepository
	Hasher   password.Params
	Policy   password.Policy
	TokenTTL time.Duration // 0 = sin expiración
}

// Services agrupa los services del dominio auth.
type Services struct {
	Credentials *CredentialService
	Tokens      *TokenService
	Register    *RegisterService
}

func NewServices(d Deps) Services {
	creds := NewCredentialService(d.Users)
	return Services{
		Credentials: creds,
		Tokens:      NewTokenService(TokenDeps{Tokens: d.Tokens, Users: d.Users, TTL: d.TokenTTL}),
		Register:    NewRegisterService(RegisterDeps{Users: d.Users, Hasher: d.Hasher, Policy: d.Policy}),
	}
}
