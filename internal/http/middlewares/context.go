package middlewares

import (
	"context"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
)

type ctxKey string

const (
	// ctxIdentityKey guarda el *repository.User autenticado (Basic, Bearer o sesión)
	ctxIdentityKey ctxKey = "identity"
	// ctxSessionKey guarda el *session.Handle del request
	ctxSessionKey ctxKey = "session"
	// ctxAuthMethodKey guarda cómo se autenticó: "bearer" o "session"
	ctxAuthMethodKey ctxKey = "auth_method"
	ctxRequestIDKey  ctxKey = "request_id"
)

// WithIdentity inyecta la identidad autenticada en el contexto.
func WithIdentity(ctx context.Context, u *repository.User, method string) context.Context {
	ctx = context.WithValue(ctx, ctxIdentityKey, u)
	return context.WithValue(ctx, ctxAuthMethodKey, method)
}

// WithSession inyecta el handle de sesión en el contexto.
func WithSession(ctx context.Context, h *session.Handle) context.Context {
	return context.WithValue(ctx, ctxSessionKey, h)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetIdentity obtiene la identidad del contexto. nil si el request es anónimo.
func GetIdentity(ctx context.Context) *repository.User {
	if u, ok := ctx.Value(ctxIdentityKey).(*repository.User); ok {
		return u
	}
	return nil
}

// GetAuthMethod devuelve "bearer", "session" o "".
func GetAuthMethod(ctx context.Context) string {
	s, _ := ctx.Value(ctxAuthMethodKey).(string)
	return s
}

// GetSession obtiene el handle de sesión (anónima o no). nil si no hay cookie válida.
func GetSession(ctx context.Context) *session.Handle {
	if h, ok := ctx.Value(ctxSessionKey).(*session.Handle); ok {
		return h
	}
	return nil
}

// GetUserID obtiene el id de la identidad del contexto, o "".
func GetUserID(ctx context.Context) string {
	if u := GetIdentity(ctx); u != nil {
		return u.ID
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
