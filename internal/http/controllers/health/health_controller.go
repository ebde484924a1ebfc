// Package health contiene los probes /healthz y /readyz.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// Pinger es cualquier dependencia que se puede verificar (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller handles GET /healthz y GET /readyz.
type Controller struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewController(checks map[string]Pinger) *Controller {
	return &Controller{checks: checks, timeout: 2 * time.Second}
}

// Healthz: el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz verifica cada dependencia; cualquiera caída => 503.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(c.checks))
	for name, p := range c.checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Op("Readyz"), logger.String("check", name), logger.Err(err))
			out[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "up"
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, status, out)
}
