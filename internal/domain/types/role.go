// Package types define tipos de dominio compartidos entre paquetes.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Role es el rol de una identidad. El conjunto es cerrado: los únicos valores
// válidos son las constantes de abajo y el valor cero no es un rol.
type Role uint8

const (
	roleInvalid Role = iota
	RoleRestricted
	RoleStandard
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleRestricted: "restricted",
	RoleStandard:   "standard",
	RoleAdmin:      "admin",
}

// ErrInvalidRole se retorna al parsear un rol desconocido.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole convierte el nombre persistido ("admin", "standard", "restricted").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "standard":
		return RoleStandard, nil
	case "restricted":
		return RoleRestricted, nil
	}
	return roleInvalid, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "invalid"
}

// Valid reporta si r es uno de los roles definidos.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
