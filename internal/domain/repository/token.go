package repository

import (
	"context"
	"time"
)

// BearerToken es un token opaco de API. Solo se persiste el hash del valor.
type BearerToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	// ExpiresAt nil = sin expiración.
	ExpiresAt *time.Time
}

// Expired reporta si el token venció a la fecha now.
func (t *BearerToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// TokenRepository opera sobre bearer tokens.
type TokenRepository interface {
	Create(ctx context.Context, t BearerToken) error
	// GetByHash retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*BearerToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	// DeleteAllByUser retorna la cantidad de tokens eliminados.
	DeleteAllByUser(ctx context.Context, userID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
