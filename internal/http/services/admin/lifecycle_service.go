// Package admin contiene las operaciones de ciclo de vida de cuentas
// (soft-delete, restore, hard-delete, cambio de rol). Todas pasan por
// types.Authorize antes de mutar.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/tilgate/internal/audit"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"go.uber.org/zap"
)

var (
	ErrForbidden     = types.ErrForbidden
	ErrUserNotFound  = errors.New("user not found")
	ErrNotDeleted    = errors.New("user is not soft-deleted")
	ErrUsernameTaken = errors.New("username taken by another live user")
	ErrInvalidRole   = types.ErrInvalidRole
)

// SystemActor representa operaciones iniciadas por el operador (CLI), no
// por un usuario autenticado.
var SystemActor = &repository.User{ID: "system", Username: "system", Name: "System", Role: types.RoleAdmin}

// TokenRevoker revoca los bearer tokens de un usuario.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}

// SessionDropper invalida la sesión vigente de un usuario.
type SessionDropper interface {
	DestroyForUser(ctx context.Context, userID string) error
}

// LifecycleDeps contiene las dependencias del LifecycleService.
type LifecycleDeps struct {
	Users    repository.UserRepository
	Tokens   TokenRevoker
	Sessions SessionDropper // nil en la CLI: no hay sesiones que tocar
	Now      func() time.Time
}

type LifecycleService struct {
	deps LifecycleDeps
}

func NewLifecycleService(d LifecycleDeps) *LifecycleService {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &LifecycleService{deps: d}
}

func authorize(actor *repository.User, action types.Action) error {
	if actor == nil {
		return ErrForbidden
	}
	return types.Authorize(actor.Role, action)
}

func (s *LifecycleService) log(ctx context.Context, op string, actor *repository.User, targetID string) *zap.Logger {
	l := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("admin.lifecycle"),
		logger.Op(op),
		logger.TargetID(targetID),
	)
	if actor != nil {
		l = l.With(logger.UserID(actor.ID))
	}
	return l
}

// SoftDelete marca al usuario como borrado y le corta el acceso: sus bearer
// tokens y su sesión dejan de valer.
func (s *LifecycleService) SoftDelete(ctx context.Context, actor *repository.User, id string) error {
	log := s.log(ctx, "SoftDelete", actor, id)
	if err := authorize(actor, types.ActionSoftDeleteUser); err != nil {
		log.Warn("soft delete denied")
		return err
	}

	if err := s.deps.Users.SoftDelete(ctx, id, s.deps.Now()); err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		log.Error("soft delete failed", logger.Err(err))
		return err
	}
	s.cutAccess(ctx, log, id)

	log.Info("user soft-deleted")
	audit.Log(ctx, audit.EventUserSoftDeleted, actorField(actor), logger.TargetID(id))
	return nil
}

// Restore limpia la marca de borrado. El target debe estar soft-deleted.
func (s *LifecycleService) Restore(ctx context.Context, actor *repository.User, id string) error {
	log := s.log(ctx, "Restore", actor, id)
	if err := authorize(actor, types.ActionRestoreUser); err != nil {
		log.Warn("restore denied")
		return err
	}

	err := s.deps.Users.Restore(ctx, id)
	switch {
	case err == nil:
	case repository.IsNotFound(err):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrNotDeleted):
		return ErrNotDeleted
	case repository.IsConflict(err):
		return ErrUsernameTaken
	default:
		log.Error("restore failed", logger.Err(err))
		return err
	}

	log.Info("user restored")
	audit.Log(ctx, audit.EventUserRestored, actorField(actor), logger.TargetID(id))
	return nil
}

// HardDelete elimina el registro; tokens y reset tokens caen en cascada en
// el storage.
func (s *LifecycleService) HardDelete(ctx context.Context, actor *repository.User, id string) error {
	log := s.log(ctx, "HardDelete", actor, id)
	if err := authorize(actor, types.ActionHardDeleteUser); err != nil {
		log.Warn("hard delete denied")
		return err
	}

	if err := s.deps.Users.HardDelete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		log.Error("hard delete failed", logger.Err(err))
		return err
	}
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.DestroyForUser(ctx, id); err != nil {
			log.Warn("failed to drop session", logger.Err(err))
		}
	}

	log.Info("user hard-deleted")
	audit.Log(ctx, audit.EventUserHardDeleted, actorField(actor), logger.TargetID(id))
	return nil
}

// SetRole cambia el rol de un usuario vivo.
func (s *LifecycleService) SetRole(ctx context.Context, actor *repository.User, id string, role types.Role) error {
	log := s.log(ctx, "SetRole", actor, id)
	if err := authorize(actor, types.ActionChangeRole); err != nil {
		log.Warn("role change denied")
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	if err := s.deps.Users.UpdateRole(ctx, id, role); err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		log.Error("role change failed", logger.Err(err))
		return err
	}

	log.Info("role changed", logger.Role(role.String()))
	audit.Log(ctx, audit.EventUserRoleChanged, actorField(actor), logger.TargetID(id), logger.Role(role.String()))
	return nil
}

func actorField(actor *repository.User) zap.Field {
	return logger.String("actor_id", actor.ID)
}

func (s *LifecycleService) cutAccess(ctx context.Context, log *zap.Logger, id string) {
	if s.deps.Tokens != nil {
		if _, err := s.deps.Tokens.RevokeAllForUser(ctx, id); err != nil {
			log.Warn("failed to revoke tokens", logger.Err(err))
		}
	}
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.DestroyForUser(ctx, id); err != nil {
			log.Warn("failed to drop session", logger.Err(err))
		}
	}
}
