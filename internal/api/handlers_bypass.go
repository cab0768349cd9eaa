// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
)

// RequestBypass issues a timed bypass ticket. The ticket opens at the
// start of the next tick and closes itself after the requested ticks.
func (h *Handler) RequestBypass(w http.ResponseWriter, r *http.Request) {
	var req pipeline.BypassRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.commandContext(r)
	defer cancel()
	info, err := h.engine.RequestBypass(ctx, req)
	h.record(r, audit.EventTypeBypassOpened, string(req.Entity), err, req)
	if err != nil {
		respondCommandError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("entity", string(info.Entity)).
		Str("ticket", info.ID).
		Str("owner", sanitizeLogValue(info.Owner)).
		Uint64("ticks", req.Ticks).
		Msg("bypass ticket issued via API")
	respondData(w, r, http.StatusCreated, info, 0)
}

// CloseBypass closes every open ticket of an entity.
func (h *Handler) CloseBypass(w http.ResponseWriter, r *http.Request) {
	id := entity.ID(chi.URLParam(r, "entity"))

	ctx, cancel := h.commandContext(r)
	defer cancel()
	n, err := h.engine.CloseBypass(ctx, id)
	h.record(r, audit.EventTypeBypassClosed, string(id), err, map[string]int{"closed": n})
	if err != nil {
		respondCommandError(w, r, err)
		return
	}

	respondData(w, r, http.StatusOK, map[string]int{"closed": n}, n)
}
