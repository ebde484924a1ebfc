// Package security contiene el guard CSRF de los formularios web.
package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
)

const (
	// BagKey es la entrada del bag de sesión donde vive el token vigente.
	BagKey = "CSRF_TOKEN"
	// FormField es el campo oculto de los formularios.
	FormField = "csrfToken"

	tokenBytes = 32
)

var ErrCSRFMismatch = errors.New("csrf token missing or mismatch")

// Bag es el subconjunto del session.Manager que usa el guard.
type Bag interface {
	Put(ctx context.Context, h *session.Handle, key, value string) error
	Take(ctx context.Context, h *session.Handle, key string) (string, error)
}

type CSRFService struct {
	bag Bag
}

func NewCSRFService(bag Bag) *CSRFService {
	return &CSRFService{bag: bag}
}

// Issue genera un token nuevo para un render de formulario; reemplaza al anterior.
func (s *CSRFService) Issue(ctx context.Context, h *session.Handle) (string, error) {
	tok, err := tokens.GenerateHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("csrf: generate: %w", err)
	}
	if err := s.bag.Put(ctx, h, BagKey, tok); err != nil {
		return "", fmt.Errorf("csrf: store: %w", err)
	}
	return tok, nil
}

// Validate consume el token guardado (lectura y borrado en un paso) y lo
// compara con el enviado. Ausente o distinto => ErrCSRFMismatch.
func (s *CSRFService) Validate(ctx context.Context, h *session.Handle, submitted string) error {
	stored, err := s.bag.Take(ctx, h, BagKey)
	if err != nil {
		if errors.Is(err, session.ErrBagMiss) || errors.Is(err, session.ErrNoSession) {
			logger.From(ctx).Debug("csrf token absent", logger.Layer("service"), logger.Op("CSRF.Validate"))
			return ErrCSRFMismatch
		}
		return err
	}
	if submitted == "" || !tokens.Equal(stored, submitted) {
		logger.From(ctx).Debug("csrf token mismatch", logger.Layer("service"), logger.Op("CSRF.Validate"))
		return ErrCSRFMismatch
	}
	return nil
}
