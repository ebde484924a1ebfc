package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/password"
)

// CredentialService verifica username + secreto contra las identidades vivas.
type CredentialService struct {
	users repository.UserRepository

	dummyOnce sync.Once
	dummy     string
}

func NewCredentialService(users repository.UserRepository) *CredentialService {
	return &CredentialService{users: users}
}

// dummyHash se usa cuando el usuario no existe, para que ambas ramas
// paguen el mismo costo de hashing.
func (s *CredentialService) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = password.Hash(password.Default, password.RandomPlaceholder())
	})
	return s.dummy
}

// VerifyCredentials excluye identidades soft-deleted. Cualquier fallo
// (usuario inexistente, password incorrecta, hash corrupto) es
// ErrInvalidCredentials.
func (s *CredentialService) VerifyCredentials(ctx context.Context, username, secret string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.credentials"),
		logger.Op("VerifyCredentials"),
	)

	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("user lookup failed", logger.Err(err))
			return nil, err
		}
		password.Verify(secret, s.dummyHash())
		log.Debug("user not found")
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(secret, u.PasswordHash) {
		log.Debug("password check failed", logger.UserID(u.ID))
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
