package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/tilgate/internal/domain/types"
)

// User es la identidad canónica. Basic, bearer, sesión y OAuth resuelven a
// este registro.
type User struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
	Email        *string
	TwitterURL   *string
	Role         types.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reporta si la identidad tiene marca de soft-delete.
func (u *User) Deleted() bool { return u != nil && u.DeletedAt != nil }

// CreateUserInput contiene los datos para crear una identidad.
type CreateUserInput struct {
	Name         string
	Username     string
	PasswordHash string
	Email        *string
	TwitterURL   *string
	Role         types.Role
}

// UserRepository opera sobre identidades.
//
// Las búsquedas por username/email excluyen identidades soft-deleted;
// GetByID las incluye solo con includeDeleted.
type UserRepository interface {
	// Create retorna ErrConflict si el username ya existe entre identidades vivas.
	Create(ctx context.Context, in CreateUserInput) (*User, error)

	GetByID(ctx context.Context, id string, includeDeleted bool) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetByUsernameIncludingDeleted prefiere la identidad viva; si no hay,
	// devuelve la soft-deleted más antigua con ese username.
	GetByUsernameIncludingDeleted(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, includeDeleted bool) ([]User, error)

	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateRole(ctx context.Context, id string, role types.Role) error

	// SoftDelete marca deleted_at. ErrNotFound si no existe o ya está borrada.
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// Restore limpia deleted_at. ErrNotDeleted si la identidad está viva,
	// ErrConflict si otra identidad viva tomó el username mientras tanto.
	Restore(ctx context.Context, id string) error
	// HardDelete elimina el registro y en cascada sus tokens.
	HardDelete(ctx context.Context, id string) error
}
