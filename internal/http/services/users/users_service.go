// Package users expone las lecturas de identidades para la API.
package users

import (
	"context"
	"errors"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
)

var (
	ErrForbidden    = types.ErrForbidden
	ErrUserNotFound = errors.New("user not found")
)

type Service struct {
	users repository.UserRepository
}

func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// List devuelve las identidades vivas; includeDeleted solo para admin.
func (s *Service) List(ctx context.Context, actor *repository.User, includeDeleted bool) ([]repository.User, error) {
	if err := authorize(actor, types.ActionListUsers); err != nil {
		return nil, err
	}
	if includeDeleted {
		if err := authorize(actor, types.ActionViewDeletedUsers); err != nil {
			return nil, err
		}
	}
	return s.users.List(ctx, includeDeleted)
}

// Get busca por id. Las identidades soft-deleted solo son visibles para
// admin y pidiéndolo explícitamente.
func (s *Service) Get(ctx context.Context, actor *repository.User, id string, includeDeleted bool) (*repository.User, error) {
	if includeDeleted {
		if err := authorize(actor, types.ActionViewDeletedUsers); err != nil {
			return nil, err
		}
	}
	u, err := s.users.GetByID(ctx, id, includeDeleted)
	if repository.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func authorize(actor *repository.User, action types.Action) error {
	if actor == nil {
		return ErrForbidden
	}
	return types.Authorize(actor.Role, action)
}
