// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icswatch/icswatch/internal/auth"
	"github.com/icswatch/icswatch/internal/middleware"
)

// Router assembles the chi route tree for the control API.
type Router struct {
	handler    *Handler
	middleware *Middleware
	jwt        *auth.JWTManager
}

// NewRouter creates a router. jwtManager may be nil when authentication is
// disabled; the control routes are then open.
func NewRouter(handler *Handler, mw *Middleware, jwtManager *auth.JWTManager) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	if jwtManager != nil {
		handler.SetJWTManager(jwtManager)
	}
	return &Router{
		handler:    handler,
		middleware: mw,
		jwt:        jwtManager,
	}
}

// Setup builds the complete route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	// Operational endpoints stay outside the rate-limited API group so
	// monitoring is never throttled out.
	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	if router.jwt != nil {
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(router.middleware.RateLimitLogin())
			r.Post("/login", router.handler.Login)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		// Read endpoints and the live feed.
		r.Get("/status", router.handler.Status)
		r.Get("/classifications", router.handler.Classifications)
		r.Get("/timeline", router.handler.Timeline)
		r.Get("/network-graph", router.handler.NetworkGraph)
		r.Get("/ws", router.handler.WebSocket)

		// Control endpoints require auth when configured.
		r.Group(func(r chi.Router) {
			if router.jwt != nil {
				r.Use(router.jwt.Middleware())
			}
			r.Post("/replay/start", router.handler.Start)
			r.Post("/replay/stop", router.handler.Stop)
			r.Post("/replay/pause", router.handler.Pause)
			r.Post("/replay/resume", router.handler.Resume)
			r.Post("/replay/reset", router.handler.Reset)
			r.Post("/replay/speed", router.handler.SetSpeed)
			r.Post("/replay/random-mode", router.handler.SetRandomMode)
		})
	})

	return r
}
