// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	ws "github.com/vectrixdevelops/guardiansponge-sub001/internal/websocket"
)

// Engine is the part of the pipeline the API drives. Every method is safe
// for concurrent use; mutations are applied between ticks.
//
// Satisfied by *pipeline.Pipeline.
type Engine interface {
	Status() pipeline.Status
	Detections() []detection.Info
	RequestBypass(ctx context.Context, req pipeline.BypassRequest) (bypass.Info, error)
	CloseBypass(ctx context.Context, id entity.ID) (int, error)
	Configure(ctx context.Context, detectionID string, raw json.RawMessage) error
	SetEnabled(ctx context.Context, detectionID string, enabled bool) error
}

// AuditTrail records operator actions.
//
// Satisfied by *audit.Logger.
type AuditTrail interface {
	Log(event *audit.Event)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// ViolationStore lists journaled violations.
//
// Satisfied by *journal.Journal.
type ViolationStore interface {
	List(ctx context.Context, q journal.Query) ([]report.Record, error)
	Stats() journal.Stats
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrade
//   - handlers_health.go: liveness and pipeline status
//   - handlers_detections.go: detection listing and reconfiguration
//   - handlers_bypass.go: bypass ticket requests
//   - handlers_violations.go: journal queries
//   - handlers_audit.go: audit trail of operator actions
type Handler struct {
	engine         Engine
	violations     ViolationStore // nil when the journal is disabled
	audit          AuditTrail     // nil when auditing is disabled
	hub            *ws.Hub        // nil disables /ws
	allowedOrigins []string
	commandTimeout time.Duration
	startTime      time.Time
}

// registerTimeout bounds the wait for the hub to accept a new client.
const registerTimeout = 5 * time.Second

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithViolations enables GET /api/v1/violations.
func WithViolations(store ViolationStore) HandlerOption {
	return func(h *Handler) { h.violations = store }
}

// WithAudit records bypass and detection commands and enables
// GET /api/v1/audit.
func WithAudit(trail AuditTrail) HandlerOption {
	return func(h *Handler) { h.audit = trail }
}

// WithHub enables the websocket stream.
func WithHub(hub *ws.Hub, allowedOrigins []string) HandlerOption {
	return func(h *Handler) {
		h.hub = hub
		h.allowedOrigins = allowedOrigins
	}
}

// WithCommandTimeout bounds how long a request waits for the pipeline to
// apply a command.
func WithCommandTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.commandTimeout = d
		}
	}
}

// NewHandler creates a new API handler.
//
// Example:
//
//	handler := api.NewHandler(p, api.WithViolations(j), api.WithHub(hub, nil))
//	router := api.NewRouter(handler, api.DefaultRouterConfig())
//	http.ListenAndServe(":8765", router.Setup())
func NewHandler(engine Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:         engine,
		commandTimeout: 5 * time.Second,
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// commandContext bounds a pipeline command by the request and the
// handler's command timeout.
func (h *Handler) commandContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.commandTimeout)
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin admits clients without an Origin header (moderation
// tools, game server plugins) and browsers from an allowed origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowedOrigin := range h.allowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers a hub client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, "WEBSOCKET_DISABLED", "Live stream is not enabled", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	select {
	case h.hub.Register <- client:
		client.Start()
	case <-time.After(registerTimeout):
		logging.Ctx(r.Context()).Warn().Msg("WebSocket hub not accepting clients")
		_ = conn.Close()
	}
}
