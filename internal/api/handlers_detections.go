// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 * 1024

// EnableRequest is the body of PUT /api/v1/detections/{id}/enabled.
type EnableRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ListDetections returns every registered detection with its current
// configuration.
func (h *Handler) ListDetections(w http.ResponseWriter, r *http.Request) {
	list := h.engine.Detections()
	respondData(w, r, http.StatusOK, list, len(list))
}

// GetDetection returns one detection.
func (h *Handler) GetDetection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, info := range h.engine.Detections() {
		if info.ID == id {
			respondData(w, r, http.StatusOK, info, 0)
			return
		}
	}
	respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Unknown detection", nil)
}

// SetDetectionEnabled enables or disables a detection between ticks.
func (h *Handler) SetDetectionEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EnableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	ctx, cancel := h.commandContext(r)
	defer cancel()
	err := h.engine.SetEnabled(ctx, id, *req.Enabled)
	h.record(r, audit.EventTypeDetectionToggled, id, err, req)
	if err != nil {
		respondCommandError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("detection", id).Bool("enabled", *req.Enabled).Msg("detection toggled via API")
	h.respondDetection(w, r, id)
}

// ConfigureDetection replaces a detection's configuration section. The
// body is the section itself; omitted keys take their defaults.
func (h *Handler) ConfigureDetection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", err)
		return
	}
	if !json.Valid(raw) {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", nil)
		return
	}

	ctx, cancel := h.commandContext(r)
	defer cancel()
	err = h.engine.Configure(ctx, id, json.RawMessage(raw))
	h.record(r, audit.EventTypeDetectionConfigured, id, err, json.RawMessage(raw))
	if err != nil {
		respondCommandError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("detection", id).Msg("detection reconfigured via API")
	h.respondDetection(w, r, id)
}

func (h *Handler) respondDetection(w http.ResponseWriter, r *http.Request, id string) {
	for _, info := range h.engine.Detections() {
		if info.ID == id {
			respondData(w, r, http.StatusOK, info, 0)
			return
		}
	}
	respondData(w, r, http.StatusOK, nil, 0)
}

// decodeBody decodes a JSON request body, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err)
		return false
	}
	return true
}

// respondCommandError maps pipeline and registry errors to HTTP statuses.
func respondCommandError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		respondValidationError(w, r, verr)
	case errors.Is(err, detection.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Unknown detection", nil)
	case errors.Is(err, detection.ErrInvalidConfig):
		respondError(w, r, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), nil)
	case errors.Is(err, pipeline.ErrQueueFull):
		respondError(w, r, http.StatusServiceUnavailable, "QUEUE_FULL", "Pipeline is saturated, retry later", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Pipeline did not apply the command in time", err)
	case errors.Is(err, context.Canceled):
		respondError(w, r, http.StatusServiceUnavailable, "CANCELED", "Request canceled", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Command failed", err)
	}
}
