package middlewares

import (
	"net/http"
	"strings"

	tokens "github.com/dropDatabas3/tilgate/internal/security/token"
)

const maxRequestIDLen = 128

// WithRequestID genera o propaga X-Request-ID. El ID se expone en el header
// de respuesta y se inyecta en el contexto.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" || len(rid) > maxRequestIDLen {
				rid, _ = tokens.GenerateHex(16)
			}

			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r.WithContext(setRequestID(r.Context(), rid)))
		})
	}
}
