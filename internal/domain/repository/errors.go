package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica una violación de unicidad (ej: username tomado).
	ErrConflict = errors.New("conflict")

	// ErrNotDeleted: restore sobre una identidad que no está soft-deleted.
	ErrNotDeleted = errors.New("identity is not soft-deleted")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
