// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/icswatch/icswatch/internal/config"
)

// MiddlewareConfig holds configuration for the router middleware stack.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// MiddlewareConfigFromSecurity derives middleware settings from the loaded
// configuration.
func MiddlewareConfigFromSecurity(server *config.ServerConfig, security *config.SecurityConfig) *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: server.CORSOrigins,
		RateLimitRequests:  security.RateLimitReqs,
		RateLimitWindow:    security.RateLimitWindow,
		RateLimitDisabled:  security.RateLimitDisabled,
	}
}

// Middleware provides chi-compatible middleware factories built on the
// go-chi ecosystem.
type Middleware struct {
	config *MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory for the router.
func NewMiddleware(cfg *MiddlewareConfig) *Middleware {
	if cfg == nil {
		cfg = &MiddlewareConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		}
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	return &Middleware{
		config: cfg,
		cors:   corsHandler,
	}
}

// CORS returns the CORS middleware.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns an IP-keyed rate limiting middleware.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// RateLimitLogin returns the stricter rate limit for login attempts.
func (m *Middleware) RateLimitLogin() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(5, 5*time.Minute)
}
