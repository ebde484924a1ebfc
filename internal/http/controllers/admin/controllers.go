// Package admin contiene los controllers de lectura de usuarios y de ciclo
// de vida de cuentas (API y formularios web).
package admin

import (
	svcadmin "github.com/dropDatabas3/tilgate/internal/http/services/admin"
	"github.com/dropDatabas3/tilgate/internal/http/services/users"
)

// Controllers agrupa los controllers admin.
type Controllers struct {
	Users     *UsersController
	Lifecycle *LifecycleController
}

func NewControllers(u *users.Service, l *svcadmin.LifecycleService) *Controllers {
	return &Controllers{
		Users:     NewUsersController(u),
		Lifecycle: NewLifecycleController(l),
	}
}
