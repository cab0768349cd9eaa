// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package middleware provides HTTP middleware for the Guardian API.

Both middlewares have the chi signature func(http.Handler) http.Handler:

  - RequestID: reuses or generates an X-Request-ID and stores it in the
    request context as the logging correlation ID
  - PrometheusMetrics: records guardian_api_requests_total and
    guardian_api_request_duration_seconds labelled by chi route pattern

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Rate limiting uses go-chi/httprate directly in the api package.
*/
package middleware
