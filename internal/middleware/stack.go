// SPDX-License-Identifier: MIT

// Package middleware provides the canonical HTTP ingress middleware
// stack shared by every route group.
package middleware

import (
	"github.com/go-chi/chi/v5"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string
	CSP            string

	EnableMetrics bool
	EnableLogging bool

	// Rate limiting for the API surface. Zero disables it.
	RateLimitRPM int
}

// NewRouter constructs a chi router with the canonical middleware
// stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the stack to r. Order matters: the recoverer is
// the outermost safety net, correlation comes before anything that
// logs, and rate limiting runs last so rejected requests still carry
// headers and metrics.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(SecurityHeaders(cfg.CSP))
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.EnableLogging {
		r.Use(Logging)
	}
	if cfg.RateLimitRPM > 0 {
		r.Use(RateLimit(cfg.RateLimitRPM))
	}
}
