// Package store abre el backend de persistencia configurado y expone sus
// repositorios a los services.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/store/memory"
	"github.com/dropDatabas3/tilgate/internal/store/pg"
)

// Config selecciona el driver.
type Config struct {
	Driver          string // "postgres" | "memory"
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Store es el handle que reciben los services. No hay estado global: cada
// proceso (o test) abre el suyo.
type Store struct {
	Driver      string
	Users       repository.UserRepository
	Tokens      repository.TokenRepository
	ResetTokens repository.ResetTokenRepository
	Acronyms    repository.AcronymRepository

	ping  func(ctx context.Context) error
	close func()
}

// Ping verifica el backend (readyz).
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close libera conexiones (idempotente).
func (s *Store) Close() {
	if s.close != nil {
		s.close()
		s.close = nil
	}
}

// Open crea el Store según cfg.Driver.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "postgres", "pg":
		if cfg.AutoMigrate {
			if err := MigrateUp(cfg.DSN); err != nil {
				return nil, fmt.Errorf("store: migrate: %w", err)
			}
		}
		db, err := pg.Open(ctx, cfg.DSN, pg.PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		return &Store{
			Driver:      "postgres",
			Users:       db.Users(),
			Tokens:      db.Tokens(),
			ResetTokens: db.ResetTokens(),
			Acronyms:    db.Acronyms(),
			ping:        db.Ping,
			close:       db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// NewMemory devuelve un Store en memoria vacío.
func NewMemory() *Store {
	db := memory.New()
	return &Store{
		Driver:      "memory",
		Users:       db.Users(),
		Tokens:      db.Tokens(),
		ResetTokens: db.ResetTokens(),
		Acronyms:    db.Acronyms(),
	}
}
