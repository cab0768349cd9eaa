// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/middleware"
)

// RouterConfig holds HTTP routing settings.
type RouterConfig struct {
	// RateLimitRequests per RateLimitWindow are allowed per client IP on
	// /api/v1. Zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Timeout bounds each /api/v1 request. Zero disables it.
	Timeout time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		Timeout:           30 * time.Second,
	}
}

// Router builds the HTTP routes.
type Router struct {
	handler *Handler
	config  RouterConfig
}

// NewRouter creates a router for handler.
func NewRouter(handler *Handler, config RouterConfig) *Router {
	return &Router{handler: handler, config: config}
}

// rateLimit returns an IP-keyed httprate limiter, or a no-op when
// disabled.
func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.config.RateLimitRequests <= 0 || router.config.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(router.config.RateLimitRequests, router.config.RateLimitWindow)
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	// ========================
	// Probes and Metrics
	// ========================
	r.Get("/healthz", router.handler.HealthLive)
	r.Get("/readyz", router.handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived connection; excluded from the request timeout.
	r.With(router.rateLimit()).Get("/ws", router.handler.WebSocket)

	// ========================
	// API v1
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit())
		if router.config.Timeout > 0 {
			r.Use(chimiddleware.Timeout(router.config.Timeout))
		}

		r.Get("/status", router.handler.Status)

		r.Route("/detections", func(r chi.Router) {
			r.Get("/", router.handler.ListDetections)
			r.Get("/{id}", router.handler.GetDetection)
			r.Put("/{id}/enabled", router.handler.SetDetectionEnabled)
			r.Put("/{id}/config", router.handler.ConfigureDetection)
		})

		r.Post("/bypass", router.handler.RequestBypass)
		r.Delete("/bypass/{entity}", router.handler.CloseBypass)

		r.Get("/violations", router.handler.ListViolations)
		r.Get("/audit", router.handler.ListAudit)
	})

	return r
}
