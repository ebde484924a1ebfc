package types

import "errors"

// Action enumera las operaciones protegidas por rol.
type Action uint8

const (
	ActionListUsers Action = iota + 1
	ActionViewDeletedUsers
	ActionCreateUser
	ActionSoftDeleteUser
	ActionRestoreUser
	ActionHardDeleteUser
	ActionChangeRole
	ActionCreateAcronym
	ActionEditAnyAcronym
)

func (a Action) String() string {
	switch a {
	case ActionListUsers:
		return "users.list"
	case ActionViewDeletedUsers:
		return "users.view_deleted"
	case ActionCreateUser:
		return "users.create"
	case ActionSoftDeleteUser:
		return "users.soft_delete"
	case ActionRestoreUser:
		return "users.restore"
	case ActionHardDeleteUser:
		return "users.hard_delete"
	case ActionChangeRole:
		return "users.change_role"
	case ActionCreateAcronym:
		return "acronyms.create"
	case ActionEditAnyAcronym:
		return "acronyms.edit_any"
	}
	return "unknown"
}

// ErrForbidden: el actor está autenticado pero su rol no alcanza.
var ErrForbidden = errors.New("forbidden")

// minimum role per action
var policy = map[Action]Role{
	ActionListUsers:        RoleRestricted,
	ActionViewDeletedUsers: RoleAdmin,
	ActionCreateUser:       RoleStandard,
	ActionSoftDeleteUser:   RoleAdmin,
	ActionRestoreUser:      RoleAdmin,
	ActionHardDeleteUser:   RoleAdmin,
	ActionChangeRole:       RoleAdmin,
	ActionCreateAcronym:    RoleStandard,
	ActionEditAnyAcronym:   RoleAdmin,
}

// Authorize decide si role puede ejecutar action. Es el único punto donde se
// comparan roles; los services lo llaman antes de mutar.
func Authorize(role Role, action Action) error {
	min, ok := policy[action]
	if !ok || !role.Valid() {
		return ErrForbidden
	}
	if role < min {
		return ErrForbidden
	}
	return nil
}
