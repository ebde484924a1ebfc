// Package memory implementa los repositorios en memoria. Lo usan los tests y
// el modo dev sin base de datos; respeta las mismas reglas de unicidad y
// atomicidad que el adapter pg.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
)

// DB agrupa las tablas en memoria. Un único mutex cubre todas para que los
// borrados en cascada sean consistentes.
type DB struct {
	mu       sync.Mutex
	users    map[string]*repository.User
	tokens   map[string]*repository.BearerToken // by hash
	resets   map[string]*repository.ResetToken  // by hash
	acronyms map[string]*repository.Acronym

	now func() time.Time
}

func New() *DB {
	return &DB{
		users:    map[string]*repository.User{},
		tokens:   map[string]*repository.BearerToken{},
		resets:   map[string]*repository.ResetToken{},
		acronyms: map[string]*repository.Acronym{},
		now:      time.Now,
	}
}

func (db *DB) Users() repository.UserRepository             { return userRepo{db} }
func (db *DB) Tokens() repository.TokenRepository           { return tokenRepo{db} }
func (db *DB) ResetTokens() repository.ResetTokenRepository { return resetRepo{db} }
func (db *DB) Acronyms() repository.AcronymRepository       { return acronymRepo{db} }

// ─── UserRepository ───

type userRepo struct{ db *DB }

func cloneUser(u *repository.User) *repository.User {
	c := *u
	return &c
}

// liveByUsername asume db.mu tomado.
func (db *DB) liveByUsername(username string) *repository.User {
	for _, u := range db.users {
		if u.DeletedAt == nil && u.Username == username {
			return u
		}
	}
	return nil
}

func (r userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.liveByUsername(in.Username) != nil {
		return nil, repository.ErrConflict
	}
	role := in.Role
	if !role.Valid() {
		role = types.RoleStandard
	}
	now := r.db.now().UTC()
	u := &repository.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Email:        in.Email,
		TwitterURL:   in.TwitterURL,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.db.users[u.ID] = u
	return cloneUser(u), nil
}

func (r userRepo) GetByID(_ context.Context, id string, includeDeleted bool) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok || (u.DeletedAt != nil && !includeDeleted) {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if u := r.db.liveByUsername(username); u != nil {
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByUsernameIncludingDeleted(_ context.Context, username string) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if u := r.db.liveByUsername(username); u != nil {
		return cloneUser(u), nil
	}
	var found *repository.User
	for _, u := range r.db.users {
		if u.Username != username {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			found = u
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return cloneUser(found), nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.DeletedAt == nil && u.Email != nil && strings.EqualFold(*u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) List(_ context.Context, includeDeleted bool) ([]repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]repository.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		if u.DeletedAt != nil && !includeDeleted {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r userRepo) mutateLive(id string, fn func(u *repository.User)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = r.db.now().UTC()
	return nil
}

func (r userRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.mutateLive(id, func(u *repository.User) { u.PasswordHash = hash })
}

func (r userRepo) UpdateRole(_ context.Context, id string, role types.Role) error {
	if !role.Valid() {
		return types.ErrInvalidRole
	}
	return r.mutateLive(id, func(u *repository.User) { u.Role = role })
}

func (r userRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.mutateLive(id, func(u *repository.User) {
		t := at.UTC()
		u.DeletedAt = &t
	})
}

func (r userRepo) Restore(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.DeletedAt == nil {
		return repository.ErrNotDeleted
	}
	if r.db.liveByUsername(u.Username) != nil {
		return repository.ErrConflict
	}
	u.DeletedAt = nil
	u.UpdatedAt = r.db.now().UTC()
	return nil
}

func (r userRepo) HardDelete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.users, id)
	// cascade
	for h, t := range r.db.tokens {
		if t.UserID == id {
			delete(r.db.tokens, h)
		}
	}
	for h, t := range r.db.resets {
		if t.UserID == id {
			delete(r.db.resets, h)
		}
	}
	for k, a := range r.db.acronyms {
		if a.UserID == id {
			delete(r.db.acronyms, k)
		}
	}
	return nil
}

// ─── TokenRepository ───

type tokenRepo struct{ db *DB }

func (r tokenRepo) Create(_ context.Context, t repository.BearerToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[t.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, dup := r.db.tokens[t.TokenHash]; dup {
		return repository.ErrConflict
	}
	c := t
	r.db.tokens[t.TokenHash] = &c
	return nil
}

func (r tokenRepo) GetByHash(_ context.Context, hash string) (*repository.BearerToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.tokens[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r tokenRepo) DeleteByHash(_ context.Context, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.tokens[hash]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.tokens, hash)
	return nil
}

func (r tokenRepo) DeleteAllByUser(_ context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for h, t := range r.db.tokens {
		if t.UserID == userID {
			delete(r.db.tokens, h)
			n++
		}
	}
	return n, nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for h, t := range r.db.tokens {
		if t.Expired(now) {
			delete(r.db.tokens, h)
			n++
		}
	}
	return n, nil
}

// ─── ResetTokenRepository ───

type resetRepo struct{ db *DB }

func (r resetRepo) Create(_ context.Context, t repository.ResetToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[t.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, dup := r.db.resets[t.TokenHash]; dup {
		return repository.ErrConflict
	}
	c := t
	r.db.resets[t.TokenHash] = &c
	return nil
}

func (r resetRepo) Take(_ context.Context, hash string, now time.Time) (*repository.ResetToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.resets[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.db.resets, hash)
	if !now.Before(t.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (r resetRepo) DeleteAllByUser(_ context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n := 0
	for h, t := range r.db.resets {
		if t.UserID == userID {
			delete(r.db.resets, h)
			n++
		}
	}
	return n, nil
}

// ─── AcronymRepository ───

type acronymRepo struct{ db *DB }

func (r acronymRepo) Create(_ context.Context, a repository.Acronym) (*repository.Acronym, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	c := a
	r.db.acronyms[a.ID] = &c
	return &a, nil
}

func (r acronymRepo) GetByID(_ context.Context, id string) (*repository.Acronym, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.acronyms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r acronymRepo) Update(_ context.Context, a repository.Acronym) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.acronyms[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Short, cur.Long = a.Short, a.Long
	return nil
}

func (r acronymRepo) List(_ context.Context) ([]repository.Acronym, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]repository.Acronym, 0, len(r.db.acronyms))
	for _, a := range r.db.acronyms {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Short < out[j].Short })
	return out, nil
}
