package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
	"github.com/google/uuid"
)

const tokenBytes = 32

// TokenDeps contiene las dependencias del TokenService.
type TokenDeps struct {
	Tokens repository.TokenRepository
	Users  repository.UserRepository
	TTL    time.Duration
	Now    func() time.Time
}

// TokenService emite y valida bearer tokens opacos. El valor crudo solo
// existe en la respuesta de Issue; el store guarda SHA-256.
type TokenService struct {
	deps TokenDeps
}

func NewTokenService(d TokenDeps) *TokenService {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &TokenService{deps: d}
}

// IssuedToken es lo que ve el cliente tras el login.
type IssuedToken struct {
	ID        string
	Value     string
	UserID    string
	ExpiresAt *time.Time
}

func (s *TokenService) Issue(ctx context.Context, u *repository.User) (IssuedToken, error) {
	raw, err := tokens.GenerateOpaqueToken(tokenBytes)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	now := s.deps.Now().UTC()
	t := repository.BearerToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: tokens.SHA256Base64URL(raw),
		CreatedAt: now,
	}
	if s.deps.TTL > 0 {
		exp := now.Add(s.deps.TTL)
		t.ExpiresAt = &exp
	}
	if err := s.deps.Tokens.Create(ctx, t); err != nil {
		return IssuedToken{}, fmt.Errorf("persist token: %w", err)
	}

	logger.From(ctx).Info("token issued",
		logger.Layer("service"),
		logger.Op("TokenService.Issue"),
		logger.UserID(u.ID),
	)
	return IssuedToken{ID: t.ID, Value: raw, UserID: u.ID, ExpiresAt: t.ExpiresAt}, nil
}

// Authenticate resuelve el valor presentado a su identidad. Un token vencido
// se elimina en el acto. Dueño inexistente o soft-deleted => ErrUnauthenticated.
func (s *TokenService) Authenticate(ctx context.Context, value string) (*repository.User, error) {
	if value == "" {
		return nil, ErrUnauthenticated
	}
	h := tokens.SHA256Base64URL(value)
	t, err := s.deps.Tokens.GetByHash(ctx, h)
	if repository.IsNotFound(err) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if t.Expired(s.deps.Now()) {
		_ = s.deps.Tokens.DeleteByHash(ctx, h)
		return nil, ErrUnauthenticated
	}

	u, err := s.deps.Users.GetByID(ctx, t.UserID, false)
	if repository.IsNotFound(err) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Revoke elimina el token presentado. Revocar uno inexistente no es error.
func (s *TokenService) Revoke(ctx context.Context, value string) error {
	err := s.deps.Tokens.DeleteByHash(ctx, tokens.SHA256Base64URL(value))
	if repository.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return s.deps.Tokens.DeleteAllByUser(ctx, userID)
}

// PurgeExpired borra los tokens vencidos.
func (s *TokenService) PurgeExpired(ctx context.Context) (int, error) {
	return s.deps.Tokens.DeleteExpired(ctx, s.deps.Now())
}
