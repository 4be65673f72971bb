// Package api implements the browser-facing HTTP surface of the gateway:
// the CSRF token guard, the authenticated proxy to the backend API, and the
// account-flow endpoints that manage the session cookie.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/avancel/dashgate/auditlog"
	"github.com/avancel/dashgate/upstream"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	cfg           Config
	upstream      *upstream.Client
	audit         *auditLogger
	trail         *auditlog.Store
	ipLimiter     *ipRateLimiter
	globalLimiter *globalRateLimiter
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithAuditTrail sets the persistent audit-trail store. When nil, audit
// events are only written to the structured log and the /audit endpoint
// reports not found.
func WithAuditTrail(trail *auditlog.Store) Option {
	return func(a *API) {
		a.trail = trail
	}
}

// WithAlertFunc installs an anomaly-alert callback on the audit pipeline.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		if a.audit == nil {
			a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		}
		a.audit.metrics = newMetricsCollector(fn)
	}
}

// New creates a new API instance. The Config is normalized in place; an
// invalid configuration panics because it is a programming error at wiring
// time, not a runtime condition.
func New(cfg Config, up *upstream.Client, opts ...Option) *API {
	if err := cfg.normalize(); err != nil {
		panic("api: " + err.Error())
	}
	a := &API{
		cfg:           cfg,
		upstream:      up,
		ipLimiter:     newIPRateLimiter(),
		globalLimiter: newGlobalRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.audit.trail = a.trail
	return a
}

// Router returns a chi.Router with all gateway routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/csrf", a.CSRFToken)
	r.Get("/auth/session", a.Session)
	r.Get("/audit", a.ListAuditTrail)

	// Everything below mutates state and must carry a valid CSRF token.
	r.Group(func(r chi.Router) {
		r.Use(a.CSRFMiddleware)

		r.Post("/auth/login", a.Login)
		r.Post("/auth/logout", a.Logout)
		r.Post("/auth/register", a.Register)
		r.Post("/auth/confirm", a.ConfirmEmail)
		r.Post("/auth/password/recover", a.RecoverPassword)
		r.Post("/auth/password/update", a.UpdatePassword)

		for _, method := range proxyMethods {
			r.Method(method, "/proxy/*", http.HandlerFunc(a.Proxy))
		}
	})

	return r
}
