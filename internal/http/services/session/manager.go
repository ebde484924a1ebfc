package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// CredentialChecker verifica username + secreto (auth.CredentialService).
type CredentialChecker interface {
	VerifyCredentials(ctx context.Context, username, secret string) (*repository.User, error)
}

// Deps contiene las dependencias del Manager.
type Deps struct {
	Store       *Store
	Users       repository.UserRepository
	Credentials CredentialChecker
	Cookie      helpers.CookieOptions
}

// Manager liga identidades a sesiones vía cookie.
type Manager struct {
	deps Deps
}

func NewManager(d Deps) *Manager {
	if d.Cookie.Name == "" {
		d.Cookie.Name = "til-session"
	}
	return &Manager{deps: d}
}

func (m *Manager) Store() *Store { return m.deps.Store }

// AuthenticateWithCredentials delega en el verificador; soft-deleted quedan fuera.
func (m *Manager) AuthenticateWithCredentials(ctx context.Context, username, secret string) (*repository.User, error) {
	return m.deps.Credentials.VerifyCredentials(ctx, username, secret)
}

// Establish rota el sid: la sesión previa del request (anónima o no) se
// destruye y se abre una nueva con u como principal.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, u *repository.User) (*Handle, error) {
	if prev, err := m.Current(ctx, r); err == nil {
		_ = m.deps.Store.Delete(ctx, prev)
	}
	h, err := m.deps.Store.Create(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, helpers.BuildCookie(m.deps.Cookie, h.SID, m.deps.Store.TTL()))

	logger.From(ctx).Info("session established",
		logger.Layer("service"),
		logger.Op("Session.Establish"),
		logger.UserID(u.ID),
	)
	return h, nil
}

// Current resuelve la cookie del request. ErrNoSession si no hay sesión viva.
func (m *Manager) Current(ctx context.Context, r *http.Request) (*Handle, error) {
	ck, err := r.Cookie(m.deps.Cookie.Name)
	if err != nil || ck.Value == "" {
		return nil, ErrNoSession
	}
	return m.deps.Store.Get(ctx, ck.Value)
}

// Ensure devuelve la sesión actual o abre una anónima (formularios previos
// al login necesitan bag: CSRF, nonce OAuth, handoff de reset).
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Handle, error) {
	h, err := m.Current(ctx, r)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return nil, err
	}
	h, err = m.deps.Store.Create(ctx, "")
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, helpers.BuildCookie(m.deps.Cookie, h.SID, m.deps.Store.TTL()))
	return h, nil
}

// Identity devuelve la identidad ligada a h. Sesión anónima o identidad
// soft-deleted => ErrNoSession.
func (m *Manager) Identity(ctx context.Context, h *Handle) (*repository.User, error) {
	if !h.Authenticated() {
		return nil, ErrNoSession
	}
	u, err := m.deps.Users.GetByID(ctx, h.UserID, false)
	if repository.IsNotFound(err) {
		return nil, ErrNoSession
	}
	return u, err
}

// Destroy cierra la sesión del request y borra la cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, helpers.BuildDeletionCookie(m.deps.Cookie))
	h, err := m.Current(ctx, r)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.deps.Store.Delete(ctx, h)
}

// DestroyForUser invalida la sesión vigente del usuario desde fuera de su
// request (reset de password, baja de cuenta).
func (m *Manager) DestroyForUser(ctx context.Context, userID string) error {
	return m.deps.Store.DeleteForUser(ctx, userID)
}

func (m *Manager) Put(ctx context.Context, h *Handle, key, value string) error {
	return m.deps.Store.Put(ctx, h, key, value)
}

func (m *Manager) Peek(ctx context.Context, h *Handle, key string) (string, error) {
	return m.deps.Store.Peek(ctx, h, key)
}

func (m *Manager) Take(ctx context.Context, h *Handle, key string) (string, error) {
	return m.deps.Store.Take(ctx, h, key)
}
