// Package metrics define los collectors Prometheus del servicio. Vive en un
// paquete propio para que controllers y middlewares lo importen sin ciclos.
package metrics

import (
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes usados en las etiquetas de los contadores de dominio.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
	OutcomeRetry   = "retry"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total de requests HTTP",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duración de requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests HTTP en curso",
	}, []string{"method", "path"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilgate_logins_total",
		Help: "Intentos de login por método (basic, form, google, github) y resultado",
	}, []string{"method", "outcome"})

	OAuthCallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilgate_oauth_callbacks_total",
		Help: "Callbacks OAuth por proveedor y resultado",
	}, []string{"provider", "outcome"})

	PasswordResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilgate_password_resets_total",
		Help: "Pasos del flujo de reset (request, validate, redeem) por resultado",
	}, []string{"stage", "outcome"})

	CSRFFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tilgate_csrf_failures_total",
		Help: "Formularios rechazados por token CSRF ausente o distinto",
	})

	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tilgate_tokens_revoked_total",
		Help: "Bearer tokens revocados explícitamente",
	})
)

var (
	registerOnce sync.Once
	registerErr  error
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInflight,
		LoginsTotal,
		OAuthCallbacksTotal,
		PasswordResetsTotal,
		CSRFFailuresTotal,
		TokensRevokedTotal,
	}
}

// Register registra todos los collectors (una sola vez por proceso).
func Register(reg prometheus.Registerer) error {
	registerOnce.Do(func() {
		for _, c := range collectors() {
			if err := registerCollector(reg, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

// Handler registra los collectors y devuelve el endpoint /metrics.
func Handler() (http.Handler, error) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	return promhttp.Handler(), nil
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// NormalizePath colapsa segmentos dinámicos (ids, tokens) para acotar la
// cardinalidad de la etiqueta path.
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	if clean == "" || clean == "/" {
		return "/"
	}
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	return uuidSegmentRE.MatchString(seg) || hexSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg)
}
