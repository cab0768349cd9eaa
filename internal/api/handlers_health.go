// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"net/http"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Pipeline         pipeline.Status `json:"pipeline"`
	Journal          *journal.Stats  `json:"journal,omitempty"`
	WebSocketClients int             `json:"websocket_clients"`
	Uptime           float64         `json:"uptime_seconds"`
}

// HealthLive handles liveness probe requests.
// Returns 200 OK if the process is alive, regardless of the tick loop.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, 0)
}

// HealthReady handles readiness probe requests.
// Returns 200 OK only while the tick loop is running.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()

	statusCode := http.StatusOK
	status := "ready"
	if !st.Running {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondData(w, r, statusCode, map[string]interface{}{
		"status": status,
		"tick":   st.Tick,
	}, 0)
}

// Status returns pipeline counters and component statistics.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Pipeline: h.engine.Status(),
		Uptime:   time.Since(h.startTime).Seconds(),
	}
	if h.violations != nil {
		stats := h.violations.Stats()
		resp.Journal = &stats
	}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.GetClientCount()
	}
	respondData(w, r, http.StatusOK, resp, 0)
}
