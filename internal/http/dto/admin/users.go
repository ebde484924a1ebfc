// Package admin contiene DTOs para endpoints de usuarios y ciclo de vida.
package admin

import (
	"time"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
)

// PublicUser es la única forma en que una identidad sale por la API: nunca
// lleva hash de password.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// AdminUser agrega rol y estado de borrado para la vista de admin.
type AdminUser struct {
	PublicUser
	Role      string     `json:"role"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// RoleRequest es el body de PUT /api/users/{id}/role.
type RoleRequest struct {
	Role string `json:"role"`
}

func ToPublic(u *repository.User) PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Username: u.Username}
}

func ToPublicList(us []repository.User) []PublicUser {
	out := make([]PublicUser, 0, len(us))
	for i := range us {
		out = append(out, ToPublic(&us[i]))
	}
	return out
}

func ToAdmin(u *repository.User) AdminUser {
	return AdminUser{PublicUser: ToPublic(u), Role: u.Role.String(), DeletedAt: u.DeletedAt}
}

func ToAdminList(us []repository.User) []AdminUser {
	out := make([]AdminUser, 0, len(us))
	for i := range us {
		out = append(out, ToAdmin(&us[i]))
	}
	return out
}
