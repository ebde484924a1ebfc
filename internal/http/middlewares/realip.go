package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/tilgate/internal/http/helpers"
)

// WithClientIP resuelve la IP real una vez por request. Sin proxies de
// confianza es siempre RemoteAddr; logging y rate limit leen el resultado
// con helpers.ClientIP.
func WithClientIP(trusted helpers.TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := helpers.WithClientIP(r.Context(), trusted.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
