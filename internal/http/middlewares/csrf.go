package middlewares

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/services/security"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

const maxFormBody = 64 << 10

func isUnsafe(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequireCSRF valida el campo oculto csrfToken de los formularios contra el
// token guardado en la sesión. El token se consume en el intento, coincida o
// no. Ausente o distinto => 400.
func RequireCSRF(guard *security.CSRFService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
			if err := r.ParseForm(); err != nil {
				httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("formulario inválido"))
				return
			}

			err := guard.Validate(r.Context(), GetSession(r.Context()), r.PostForm.Get(security.FormField))
			if err != nil {
				if errors.Is(err, security.ErrCSRFMismatch) {
					metrics.CSRFFailuresTotal.Inc()
					logger.From(r.Context()).Warn("csrf check failed", logger.Op("RequireCSRF"))
					httperrors.WriteError(w, httperrors.ErrInvalidCSRF)
					return
				}
				httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
