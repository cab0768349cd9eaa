// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package sequence

import "errors"

// Evaluation aborts. A Condition returns one of these (optionally wrapped)
// to end its sequence without a verdict. None of them indicate a fault in
// the entity; they are data-quality guards.
var (
	// ErrWindowOverload means fewer host steps elapsed over the window than
	// the check's minimum, typically because the host is lagging.
	ErrWindowOverload = errors.New("sampling window below minimum tick range")

	// ErrWindowStale means more host steps elapsed than the check's maximum.
	ErrWindowStale = errors.New("sampling window above maximum tick range")

	// ErrMissingCapture means a capture slot the condition needs is absent.
	ErrMissingCapture = errors.New("required capture missing")

	// ErrExcluded means the entity's state exempts it from the check, for
	// example riding a vehicle.
	ErrExcluded = errors.New("entity excluded from check")
)

// Engine-side terminations.
var (
	// ErrSuppressed marks a sequence force-finished by a bypass ticket.
	ErrSuppressed = errors.New("suppressed by bypass ticket")

	// ErrPanic marks a sequence cancelled after a capture or condition
	// panicked.
	ErrPanic = errors.New("sequence panicked")

	// ErrInvalidBlueprint is returned by Blueprint.Validate.
	ErrInvalidBlueprint = errors.New("invalid blueprint")
)

// AbortReason maps an evaluation error to a short metrics label.
func AbortReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWindowOverload):
		return "overload"
	case errors.Is(err, ErrWindowStale):
		return "stale"
	case errors.Is(err, ErrMissingCapture):
		return "missing_capture"
	case errors.Is(err, ErrExcluded):
		return "excluded"
	case errors.Is(err, ErrSuppressed):
		return "bypass"
	case errors.Is(err, ErrPanic):
		return "panic"
	default:
		return "error"
	}
}
