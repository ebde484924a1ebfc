package repository

import "context"

// Acronym es el recurso de ejemplo que protegen los formularios web con CSRF.
type Acronym struct {
	ID     string
	Short  string
	Long   string
	UserID string
}

type AcronymRepository interface {
	Create(ctx context.Context, a Acronym) (*Acronym, error)
	GetByID(ctx context.Context, id string) (*Acronym, error)
	Update(ctx context.Context, a Acronym) error
	List(ctx context.Context) ([]Acronym, error)
}
