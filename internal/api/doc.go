// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package api provides the Guardian HTTP API on a chi router.

Endpoints:

	GET    /healthz                         liveness
	GET    /readyz                          200 while the tick loop runs
	GET    /metrics                         Prometheus exposition
	GET    /ws                              live violation stream
	GET    /api/v1/status                   pipeline counters
	GET    /api/v1/detections               registered detections
	GET    /api/v1/detections/{id}          one detection
	PUT    /api/v1/detections/{id}/enabled  {"enabled": bool}
	PUT    /api/v1/detections/{id}/config   replace a configuration section
	POST   /api/v1/bypass                   issue a timed bypass ticket
	DELETE /api/v1/bypass/{entity}          close an entity's tickets
	GET    /api/v1/violations               journal query (limit, entity, since)
	GET    /api/v1/audit                    operator actions (limit, type, target, outcome)

Every mutation is enqueued on the pipeline and applied between ticks; the
handler waits for the result so the response reflects the applied state.
A full inbound queue answers 503.

Responses use one envelope:

	{"status": "success", "data": ..., "metadata": {"timestamp": ..., "request_id": ...}}
	{"status": "error", "error": {"code": "NOT_FOUND", "message": ...}, "metadata": {...}}

/api/v1 and /ws are rate limited per client IP by go-chi/httprate.
*/
package api
