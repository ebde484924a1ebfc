// Package audit emite eventos de auditoría sobre acciones que cambian el
// estado de una cuenta. Hoy el sink es el logger con component=audit.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

type Event string

const (
	EventUserSoftDeleted  Event = "user.soft_deleted"
	EventUserRestored     Event = "user.restored"
	EventUserHardDeleted  Event = "user.hard_deleted"
	EventUserRoleChanged  Event = "user.role_changed"
	EventPasswordReset    Event = "user.password_reset"
	EventFederatedCreated Event = "user.federated_created"
)

// Log escribe el evento con los campos del request (request_id, etc.) que
// ya tenga el logger del contexto.
func Log(ctx context.Context, event Event, fields ...zap.Field) {
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, logger.Component("audit"), zap.String("event", string(event)))
	fs = append(fs, fields...)
	logger.From(ctx).Info("audit", fs...)
}
