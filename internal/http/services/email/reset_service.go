// Package email contiene el flujo de recuperación de contraseña.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/tilgate/internal/audit"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	mail "github.com/dropDatabas3/tilgate/internal/email"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
	"github.com/dropDatabas3/tilgate/internal/util"
	"github.com/google/uuid"
)

// HandoffKey es la entrada del bag donde queda el usuario entre la
// validación del token y el submit del password nuevo.
const HandoffKey = "RESET_USER_ID"

const resetTokenBytes = 32

var (
	ErrInvalidResetToken = errors.New("reset token invalid, used or expired")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrNoResetInProgress = errors.New("no password reset in progress")
	ErrSendFailed        = errors.New("failed to send reset email")
)

// PolicyError: el password nuevo no cumple la política.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Reasons, ",")
}

// Sessions es lo que el flujo necesita del session.Manager.
type Sessions interface {
	Current(ctx context.Context, r *http.Request) (*session.Handle, error)
	Put(ctx context.Context, h *session.Handle, key, value string) error
	Peek(ctx context.Context, h *session.Handle, key string) (string, error)
	Take(ctx context.Context, h *session.Handle, key string) (string, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	DestroyForUser(ctx context.Context, userID string) error
}

// TokenRevoker revoca los bearer tokens de un usuario.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}

// ResetDeps contiene las dependencias del ResetService.
type ResetDeps struct {
	Users    repository.UserRepository
	Resets   repository.ResetTokenRepository
	Tokens   TokenRevoker
	Sessions Sessions
	Mailer   mail.Sender
	BaseURL  string // sin barra final
	TTL      time.Duration
	Hasher   password.Params
	Policy   password.Policy
	Now      func() time.Time
}

type ResetService struct {
	deps ResetDeps
}

func NewResetService(d ResetDeps) *ResetService {
	if d.TTL <= 0 {
		d.TTL = time.Hour
	}
	if d.Hasher.KeyLen == 0 {
		d.Hasher = password.Default
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.BaseURL = strings.TrimRight(d.BaseURL, "/")
	return &ResetService{deps: d}
}

// RequestReset emite un token y lo manda por mail. Un email desconocido
// devuelve nil igual que el caso exitoso (anti-enum). Un fallo del mailer sí
// se propaga.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("email.reset"),
		logger.Op("RequestReset"),
	)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	u, err := s.deps.Users.GetByEmail(ctx, email)
	if repository.IsNotFound(err) {
		// anti-enum: silent success
		log.Debug("no user for email", logger.Email(util.MaskEmail(email)))
		return nil
	}
	if err != nil {
		log.Error("user lookup failed", logger.Err(err))
		return err
	}
	log = log.With(logger.UserID(u.ID))

	// Un solo token vigente por usuario
	if _, err := s.deps.Resets.DeleteAllByUser(ctx, u.ID); err != nil {
		log.Error("failed to drop previous reset tokens", logger.Err(err))
		return err
	}

	raw, err := tokens.GenerateOpaqueToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	now := s.deps.Now().UTC()
	if err := s.deps.Resets.Create(ctx, repository.ResetToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: tokens.SHA256Base64URL(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.deps.TTL),
	}); err != nil {
		log.Error("failed to persist reset token", logger.Err(err))
		return err
	}

	msg, err := mail.RenderReset(email, mail.ResetEmailData{
		Name:     u.Name,
		Username: u.Username,
		Link:     s.ResetLink(raw),
		TTL:      s.deps.TTL,
	})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := s.deps.Mailer.Send(ctx, msg); err != nil {
		log.Error("reset email send failed", logger.Err(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	log.Info("reset email sent", logger.Email(util.MaskEmail(email)))
	return nil
}

// ResetLink arma la URL que recibe el usuario.
func (s *ResetService) ResetLink(raw string) string {
	return s.deps.BaseURL + "/resetPassword?token=" + url.QueryEscape(raw)
}

// ValidateResetToken consume el token (single-use, en el acto) y deja al
// usuario en el handoff de la sesión h.
func (s *ResetService) ValidateResetToken(ctx context.Context, h *session.Handle, raw string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("email.reset"),
		logger.Op("ValidateResetToken"),
	)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidResetToken
	}
	t, err := s.deps.Resets.Take(ctx, tokens.SHA256Base64URL(raw), s.deps.Now())
	if repository.IsNotFound(err) {
		log.Debug("reset token miss")
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}

	u, err := s.deps.Users.GetByID(ctx, t.UserID, false)
	if repository.IsNotFound(err) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.deps.Sessions.Put(ctx, h, HandoffKey, u.ID); err != nil {
		return nil, fmt.Errorf("store reset handoff: %w", err)
	}
	log.Info("reset token consumed", logger.UserID(u.ID))
	return u, nil
}

// Redeem aplica el password nuevo al usuario del handoff. Mismatch, política
// fallida o error al persistir dejan el handoff intacto para reintentar; solo
// se consume después de escribir el hash. Al terminar no queda sesión ni
// bearer token vivo del usuario.
func (s *ResetService) Redeem(ctx context.Context, w http.ResponseWriter, r *http.Request, newSecret, confirm string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("email.reset"),
		logger.Op("Redeem"),
	)

	if newSecret != confirm {
		return nil, ErrPasswordMismatch
	}
	if ok, reasons := s.deps.Policy.Validate(newSecret); !ok {
		return nil, &PolicyError{Reasons: reasons}
	}

	h, err := s.deps.Sessions.Current(ctx, r)
	if errors.Is(err, session.ErrNoSession) {
		return nil, ErrNoResetInProgress
	}
	if err != nil {
		return nil, err
	}
	uid, err := s.deps.Sessions.Peek(ctx, h, HandoffKey)
	if errors.Is(err, session.ErrBagMiss) {
		return nil, ErrNoResetInProgress
	}
	if err != nil {
		return nil, err
	}
	u, err := s.deps.Users.GetByID(ctx, uid, false)
	if repository.IsNotFound(err) {
		return nil, ErrNoResetInProgress
	}
	if err != nil {
		return nil, err
	}
	log = log.With(logger.UserID(u.ID))

	hash, err := password.Hash(s.deps.Hasher, newSecret)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.deps.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		log.Error("failed to persist new password", logger.Err(err))
		return nil, err
	}
	if _, err := s.deps.Sessions.Take(ctx, h, HandoffKey); err != nil {
		// Un redeem concurrente ya lo consumió; el hash ya quedó escrito.
		log.Warn("reset handoff already consumed", logger.Err(err))
	}

	if err := s.deps.Sessions.Destroy(ctx, w, r); err != nil {
		log.Warn("failed to destroy session", logger.Err(err))
	}
	if err := s.deps.Sessions.DestroyForUser(ctx, u.ID); err != nil {
		log.Warn("failed to drop user session binding", logger.Err(err))
	}
	if n, err := s.deps.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		log.Warn("failed to revoke bearer tokens", logger.Err(err))
	} else if n > 0 {
		log.Info("bearer tokens revoked", logger.Int("count", n))
	}

	log.Info("password reset completed")
	audit.Log(ctx, audit.EventPasswordReset, logger.UserID(u.ID))
	return u, nil
}
