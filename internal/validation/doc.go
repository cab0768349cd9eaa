// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package validation provides struct validation using go-playground/validator v10.
//
// Every configuration section (pipeline, bus, journal, each detection) and
// every API request body is checked through ValidateStruct before it takes
// effect. The singleton validator caches struct metadata, so repeated
// checks on the reload path are cheap.
//
// # Field names
//
// Errors name fields by their koanf tag, falling back to the json tag, and
// include the path from the root struct:
//
//	window.minimum_tick_range must be less than or equal to Delay
//	journal.path is required
//
// # Custom tags
//
//   - finite: rejects NaN and infinite floats (entity positions)
//
// # Quick Start
//
//	type BypassRequest struct {
//	    Entity string `json:"entity" validate:"required"`
//	    Ticks  uint64 `json:"ticks" validate:"gt=0,lte=72000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr)
//	    return
//	}
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use.
package validation
