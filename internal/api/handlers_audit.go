// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/middleware"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// AuditRequest holds the query parameters of GET /api/v1/audit.
type AuditRequest struct {
	Limit   int    `json:"limit" validate:"gte=1,lte=1000"`
	Type    string `json:"type" validate:"omitempty,oneof=bypass.opened bypass.closed detection.configured detection.toggled config.reloaded"`
	Target  string `json:"target" validate:"max=64"`
	Outcome string `json:"outcome" validate:"omitempty,oneof=success failure"`
}

// ListAudit returns recorded operator actions, newest first.
//
// Query parameters:
//   - limit: 1-1000, default 100
//   - type: one event type
//   - target: detection ID or entity
//   - outcome: success or failure
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respondError(w, r, http.StatusServiceUnavailable, "AUDIT_DISABLED", "Audit trail is not enabled", nil)
		return
	}

	q := r.URL.Query()
	req := AuditRequest{
		Limit:   getIntParam(r, "limit", 100),
		Type:    q.Get("type"),
		Target:  q.Get("target"),
		Outcome: q.Get("outcome"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	filter := audit.QueryFilter{
		Limit:   req.Limit,
		Target:  req.Target,
		Outcome: audit.Outcome(req.Outcome),
	}
	if req.Type != "" {
		filter.Types = []audit.EventType{audit.EventType(req.Type)}
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to read audit trail", err)
		return
	}
	respondData(w, r, http.StatusOK, events, len(events))
}

// record adds an operator action to the audit trail, if there is one.
func (h *Handler) record(r *http.Request, typ audit.EventType, target string, err error, metadata any) {
	if h.audit == nil {
		return
	}
	outcome, msg := audit.OutcomeOf(err)
	event := &audit.Event{
		Type:      typ,
		Outcome:   outcome,
		Actor:     audit.APIActor(r),
		Target:    sanitizeLogValue(target),
		Error:     msg,
		RequestID: middleware.GetRequestID(r.Context()),
	}
	if metadata != nil {
		if raw, merr := json.Marshal(metadata); merr == nil {
			event.Metadata = raw
		}
	}
	h.audit.Log(event)
}
