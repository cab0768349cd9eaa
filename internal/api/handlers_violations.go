// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"net/http"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// ViolationsRequest holds the query parameters of GET /api/v1/violations.
type ViolationsRequest struct {
	Limit  int    `json:"limit" validate:"gte=1,lte=1000"`
	Entity string `json:"entity" validate:"max=64"`
	Since  string `json:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ListViolations returns journaled violations, newest first.
//
// Query parameters:
//   - limit: 1-1000, default 100
//   - entity: restrict to one entity
//   - since: RFC3339 lower bound on creation time
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	if h.violations == nil {
		respondError(w, r, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "Violation journal is not enabled", nil)
		return
	}

	req := ViolationsRequest{
		Limit:  getIntParam(r, "limit", 100),
		Entity: r.URL.Query().Get("entity"),
		Since:  r.URL.Query().Get("since"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	q := journal.Query{Limit: req.Limit, Entity: entity.ID(req.Entity)}
	if req.Since != "" {
		// Format already checked by the datetime tag.
		since, _ := time.Parse(time.RFC3339, req.Since)
		q.Since = since
	}

	records, err := h.violations.List(r.Context(), q)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "JOURNAL_ERROR", "Failed to read violations", err)
		return
	}
	respondData(w, r, http.StatusOK, records, len(records))
}
