package repository

import (
	"context"
	"time"
)

// ResetToken es un token de un solo uso para restablecer contraseña.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResetTokenRepository opera sobre tokens de reset.
type ResetTokenRepository interface {
	Create(ctx context.Context, t ResetToken) error

	// Take lee y elimina el token en un solo paso. Dos llamadas concurrentes
	// con el mismo hash: exactamente una obtiene el token, la otra ErrNotFound.
	// Un token vencido se elimina y se reporta como ErrNotFound.
	Take(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)

	DeleteAllByUser(ctx context.Context, userID string) (int, error)
}
