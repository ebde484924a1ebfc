// Package pg implementa los repositorios sobre PostgreSQL (pgx v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// PoolConfig ajusta el pool; valores cero usan los defaults de pgxpool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

type DB struct{ pool *pgxpool.Pool }

// Open crea el pool. El ping inicial no es fatal: el proceso arranca aunque
// la base esté caída y /readyz lo reporta.
func Open(ctx context.Context, dsn string, cfg PoolConfig) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.L().With(logger.Component("store.pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Pool() *pgxpool.Pool { return db.pool }

func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

func (db *DB) Close() { db.pool.Close() }

func (db *DB) Users() repository.UserRepository { return &userRepo{db.pool} }

func (db *DB) Tokens() repository.TokenRepository { return &tokenRepo{db.pool} }

func (db *DB) ResetTokens() repository.ResetTokenRepository { return &resetRepo{db.pool} }

func (db *DB) Acronyms() repository.AcronymRepository { return &acronymRepo{db.pool} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

const userCols = `id::text, name, username, password_hash, email, twitter_url, role, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.Email, &u.TwitterURL,
		&role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role, err = types.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	role := in.Role
	if !role.Valid() {
		role = types.RoleStandard
	}
	const q = `
		INSERT INTO users (id, name, username, password_hash, email, twitter_url, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userCols
	u, err := scanUser(r.pool.QueryRow(ctx, q,
		uuid.NewString(), in.Name, in.Username, in.PasswordHash, in.Email, in.TwitterURL, role.String()))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return u, err
}

func (r *userRepo) GetByID(ctx context.Context, id string, includeDeleted bool) (*repository.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	q := `SELECT ` + userCols + ` FROM users WHERE id = $1`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE username = $1 AND deleted_at IS NULL`
	return scanUser(r.pool.QueryRow(ctx, q, username))
}

func (r *userRepo) GetByUsernameIncludingDeleted(ctx context.Context, username string) (*repository.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE username = $1
		ORDER BY deleted_at NULLS FIRST, created_at LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, username))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	const q = `SELECT ` + userCols + ` FROM users
		WHERE lower(email) = lower($1) AND deleted_at IS NULL
		ORDER BY created_at LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepo) List(ctx context.Context, includeDeleted bool) ([]repository.User, error) {
	q := `SELECT ` + userCols + ` FROM users`
	if !includeDeleted {
		q += ` WHERE deleted_at IS NULL`
	}
	q += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *userRepo) execLive(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	return r.execLive(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, hash)
}

func (r *userRepo) UpdateRole(ctx context.Context, id string, role types.Role) error {
	if !role.Valid() {
		return types.ErrInvalidRole
	}
	if !validID(id) {
		return repository.ErrNotFound
	}
	return r.execLive(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, role.String())
}

func (r *userRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	return r.execLive(ctx,
		`UPDATE users SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, at.UTC())
}

func (r *userRepo) Restore(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// distinguir "no existe" de "no estaba borrada"
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrNotDeleted
	}
	return repository.ErrNotFound
}

// HardDelete: tokens, reset tokens y acronyms caen por ON DELETE CASCADE.
func (r *userRepo) HardDelete(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	return r.execLive(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// ─── TokenRepository ───

type tokenRepo struct{ pool *pgxpool.Pool }

func (r *tokenRepo) Create(ctx context.Context, t repository.BearerToken) error {
	const q = `INSERT INTO tokens (id, user_id, token_hash, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, t.ID, t.UserID, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*repository.BearerToken, error) {
	const q = `SELECT id::text, user_id::text, token_hash, created_at, expires_at FROM tokens WHERE token_hash = $1`
	var t repository.BearerToken
	err := r.pool.QueryRow(ctx, q, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) DeleteByHash(ctx context.Context, hash string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *tokenRepo) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ─── ResetTokenRepository ───

type resetRepo struct{ pool *pgxpool.Pool }

func (r *resetRepo) Create(ctx context.Context, t repository.ResetToken) error {
	const q = `INSERT INTO reset_password_tokens (id, user_id, token_hash, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, t.ID, t.UserID, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// Take: un único DELETE ... RETURNING; la fila solo puede devolverse una vez.
func (r *resetRepo) Take(ctx context.Context, hash string, now time.Time) (*repository.ResetToken, error) {
	const q = `
		DELETE FROM reset_password_tokens WHERE token_hash = $1
		RETURNING id::text, user_id::text, token_hash, created_at, expires_at`
	var t repository.ResetToken
	err := r.pool.QueryRow(ctx, q, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !now.Before(t.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *resetRepo) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM reset_password_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ─── AcronymRepository ───

type acronymRepo struct{ pool *pgxpool.Pool }

func (r *acronymRepo) Create(ctx context.Context, a repository.Acronym) (*repository.Acronym, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO acronyms (id, short, long, user_id) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Short, a.Long, a.UserID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *acronymRepo) GetByID(ctx context.Context, id string) (*repository.Acronym, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	var a repository.Acronym
	err := r.pool.QueryRow(ctx, `SELECT id::text, short, long, user_id::text FROM acronyms WHERE id = $1`, id).
		Scan(&a.ID, &a.Short, &a.Long, &a.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *acronymRepo) Update(ctx context.Context, a repository.Acronym) error {
	if !validID(a.ID) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE acronyms SET short = $2, long = $3 WHERE id = $1`, a.ID, a.Short, a.Long)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *acronymRepo) List(ctx context.Context) ([]repository.Acronym, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, short, long, user_id::text FROM acronyms ORDER BY short`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Acronym
	for rows.Next() {
		var a repository.Acronym
		if err := rows.Scan(&a.ID, &a.Short, &a.Long, &a.UserID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
