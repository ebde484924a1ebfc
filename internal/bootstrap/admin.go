// Package bootstrap siembra los datos mínimos para que el servicio sea
// operable: el usuario admin inicial.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/password"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminName     = "Admin"
)

var ErrEmptyAdminPassword = errors.New("bootstrap: admin password is empty")

// AdminConfig holds configuration for admin bootstrap
type AdminConfig struct {
	Users    repository.UserRepository
	Username string // default "admin"
	Name     string // default "Admin"
	Password string
	Hasher   password.Params
}

// EnsureAdmin crea el admin si no hay una identidad viva con ese username.
// Es idempotente: en cada arranque después del primero no hace nada.
func EnsureAdmin(ctx context.Context, cfg AdminConfig) (created bool, err error) {
	log := logger.From(ctx).With(logger.Layer("bootstrap"), logger.Op("EnsureAdmin"))

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = DefaultAdminUsername
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultAdminName
	}
	if cfg.Hasher.KeyLen == 0 {
		cfg.Hasher = password.Default
	}

	// 1. ¿Ya existe?
	existing, err := cfg.Users.GetByUsername(ctx, username)
	if err == nil {
		if existing.Role != types.RoleAdmin {
			log.Warn("bootstrap username exists without admin role", logger.Username(username), logger.Role(existing.Role.String()))
		}
		return false, nil
	}
	if !repository.IsNotFound(err) {
		return false, fmt.Errorf("bootstrap: lookup admin: %w", err)
	}

	// 2. Crear
	if cfg.Password == "" {
		return false, ErrEmptyAdminPassword
	}
	hash, err := password.Hash(cfg.Hasher, cfg.Password)
	if err != nil {
		return false, fmt.Errorf("bootstrap: hash admin password: %w", err)
	}
	u, err := cfg.Users.Create(ctx, repository.CreateUserInput{
		Name:         name,
		Username:     username,
		PasswordHash: hash,
		Role:         types.RoleAdmin,
	})
	if repository.IsConflict(err) {
		// otra réplica lo sembró en paralelo
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap: create admin: %w", err)
	}

	log.Info("admin user created", logger.UserID(u.ID), logger.Username(username))
	return true, nil
}
