// Package auth contiene DTOs para endpoints de autenticación.
package auth

import "time"

// LoginResponse es la respuesta de POST /api/users/login. El valor del token
// solo viaja en esta respuesta; el servidor guarda su hash.
type LoginResponse struct {
	ID        string     `json:"id"`
	Value     string     `json:"value"`
	UserID    string     `json:"userID"`
	TokenType string     `json:"token_type"` // "Bearer"
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
