// Package acronyms es el recurso de ejemplo detrás de los formularios web.
package acronyms

import (
	"context"
	"errors"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/sanitize"
)

var (
	ErrForbidden     = types.ErrForbidden
	ErrNotFound      = errors.New("acronym not found")
	ErrMissingFields = errors.New("short and long are required")
)

type Service struct {
	repo  repository.AcronymRepository
	clean *sanitize.Text
}

func NewService(repo repository.AcronymRepository) *Service {
	return &Service{repo: repo, clean: sanitize.NewText()}
}

func (s *Service) List(ctx context.Context) ([]repository.Acronym, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*repository.Acronym, error) {
	a, err := s.repo.GetByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return a, err
}

// Create requiere rol standard o admin.
func (s *Service) Create(ctx context.Context, actor *repository.User, short, long string) (*repository.Acronym, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if err := types.Authorize(actor.Role, types.ActionCreateAcronym); err != nil {
		return nil, err
	}
	short, long = s.clean.Clean(short), s.clean.Clean(long)
	if short == "" || long == "" {
		return nil, ErrMissingFields
	}
	a, err := s.repo.Create(ctx, repository.Acronym{Short: short, Long: long, UserID: actor.ID})
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("acronym created",
		logger.Layer("service"),
		logger.Op("Acronyms.Create"),
		logger.UserID(actor.ID),
		logger.String("acronym_id", a.ID),
	)
	return a, nil
}

// Update: dueño o admin.
func (s *Service) Update(ctx context.Context, actor *repository.User, id, short, long string) (*repository.Acronym, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(actor, a); err != nil {
		return nil, err
	}
	a.Short, a.Long = s.clean.Clean(short), s.clean.Clean(long)
	if a.Short == "" || a.Long == "" {
		return nil, ErrMissingFields
	}
	if err := s.repo.Update(ctx, *a); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// CanEdit decide si actor puede editar a.
func CanEdit(actor *repository.User, a *repository.Acronym) error {
	if actor == nil {
		return ErrForbidden
	}
	if a.UserID == actor.ID && types.Authorize(actor.Role, types.ActionCreateAcronym) == nil {
		return nil
	}
	return types.Authorize(actor.Role, types.ActionEditAnyAcronym)
}
