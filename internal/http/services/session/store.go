// Package session mantiene las sesiones server-side ligadas a cookie y su
// bolsa de estado efímero (CSRF, handoff de reset, nonce OAuth).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/tilgate/internal/cache"
	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
)

var (
	ErrNoSession = errors.New("session: not found")
	ErrBagMiss   = errors.New("session: bag key not found")
)

// Handle referencia una sesión viva. SID es el valor crudo de la cookie;
// en el cache solo vive su hash.
type Handle struct {
	SID       string
	UserID    string // vacío = sesión anónima
	CreatedAt time.Time
}

// Authenticated reporta si la sesión tiene un principal.
func (h *Handle) Authenticated() bool { return h != nil && h.UserID != "" }

type record struct {
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store guarda sesiones en un cache.Client. Cada proceso arma el suyo y lo
// pasa explícitamente a quien lo necesita.
type Store struct {
	cache cache.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(c cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// TTL de cada sesión.
func (s *Store) TTL() time.Duration { return s.ttl }

func sessKey(sid string) string        { return "sess:" + tokens.SHA256Base64URL(sid) }
func bagKey(sid, key string) string    { return sessKey(sid) + ":bag:" + key }
func userBindingKey(uid string) string { return "usess:" + uid }

// Create abre una sesión nueva. Con userID no vacío la sesión pasa a ser la
// única del usuario: la anterior (si había) se elimina.
func (s *Store) Create(ctx context.Context, userID string) (*Handle, error) {
	sid, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("session: generate sid: %w", err)
	}
	rec := record{UserID: userID, CreatedAt: s.now().UTC()}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	if userID != "" {
		if err := s.DeleteForUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := s.cache.Set(ctx, sessKey(sid), string(b), s.ttl); err != nil {
		return nil, fmt.Errorf("session: save: %w", err)
	}
	if userID != "" {
		if err := s.cache.Set(ctx, userBindingKey(userID), sid, s.ttl); err != nil {
			return nil, fmt.Errorf("session: bind user: %w", err)
		}
	}
	return &Handle{SID: sid, UserID: rec.UserID, CreatedAt: rec.CreatedAt}, nil
}

// Get resuelve un sid crudo. ErrNoSession si no existe, expiró o fue destruida.
func (s *Store) Get(ctx context.Context, sid string) (*Handle, error) {
	if sid == "" {
		return nil, ErrNoSession
	}
	raw, err := s.cache.Get(ctx, sessKey(sid))
	if cache.IsNotFound(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("session: corrupt record: %w", err)
	}
	if rec.UserID != "" {
		// La sesión ya no es la vigente del usuario (otro login la reemplazó o
		// se forzó logout).
		bound, err := s.cache.Get(ctx, userBindingKey(rec.UserID))
		if err != nil && !cache.IsNotFound(err) {
			return nil, fmt.Errorf("session: load binding: %w", err)
		}
		if bound != sid {
			_ = s.cache.Delete(ctx, sessKey(sid))
			return nil, ErrNoSession
		}
	}
	return &Handle{SID: sid, UserID: rec.UserID, CreatedAt: rec.CreatedAt}, nil
}

// Delete destruye la sesión y su binding de usuario. El bag queda huérfano
// hasta que expire su TTL: sin el sid ya no es alcanzable.
func (s *Store) Delete(ctx context.Context, h *Handle) error {
	if h == nil || h.SID == "" {
		return nil
	}
	keys := []string{sessKey(h.SID)}
	if h.UserID != "" {
		bound, err := s.cache.Get(ctx, userBindingKey(h.UserID))
		if err == nil && bound == h.SID {
			keys = append(keys, userBindingKey(h.UserID))
		}
	}
	return s.cache.Delete(ctx, keys...)
}

// DeleteForUser elimina la sesión vigente del usuario, si existe.
func (s *Store) DeleteForUser(ctx context.Context, userID string) error {
	sid, err := s.cache.Take(ctx, userBindingKey(userID))
	if cache.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: drop binding: %w", err)
	}
	return s.cache.Delete(ctx, sessKey(sid))
}

// Put guarda value bajo key en el bag de la sesión.
func (s *Store) Put(ctx context.Context, h *Handle, key, value string) error {
	if h == nil {
		return ErrNoSession
	}
	return s.cache.Set(ctx, bagKey(h.SID, key), value, s.ttl)
}

// Peek lee sin consumir.
func (s *Store) Peek(ctx context.Context, h *Handle, key string) (string, error) {
	if h == nil {
		return "", ErrNoSession
	}
	v, err := s.cache.Get(ctx, bagKey(h.SID, key))
	if cache.IsNotFound(err) {
		return "", ErrBagMiss
	}
	return v, err
}

// Take lee y elimina en un solo paso; ErrBagMiss si no había valor.
func (s *Store) Take(ctx context.Context, h *Handle, key string) (string, error) {
	if h == nil {
		return "", ErrNoSession
	}
	v, err := s.cache.Take(ctx, bagKey(h.SID, key))
	if cache.IsNotFound(err) {
		return "", ErrBagMiss
	}
	return v, err
}
