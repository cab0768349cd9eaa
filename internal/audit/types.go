// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Bypass tickets
	EventTypeBypassOpened EventType = "bypass.opened"
	EventTypeBypassClosed EventType = "bypass.closed"

	// Detection changes
	EventTypeDetectionConfigured EventType = "detection.configured"
	EventTypeDetectionToggled    EventType = "detection.toggled"

	// Configuration file reloads
	EventTypeConfigReloaded EventType = "config.reloaded"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actor types.
const (
	ActorAPI    = "api"
	ActorSystem = "system"
)

// Event is one operator action against a running pipeline.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Outcome   Outcome   `json:"outcome"`
	Actor     Actor     `json:"actor"`

	// Target is the detection ID or entity the action applied to.
	Target string `json:"target,omitempty"`

	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`

	// Error is set when Outcome is failure.
	Error string `json:"error,omitempty"`

	// RequestID links the event to the HTTP request and its log lines.
	RequestID string `json:"request_id,omitempty"`
}

// Actor is who performed an action.
type Actor struct {
	// Type is ActorAPI or ActorSystem.
	Type string `json:"type"`

	// Address is the client address for API actors.
	Address string `json:"address,omitempty"`

	// UserAgent of the API client.
	UserAgent string `json:"user_agent,omitempty"`
}

// QueryFilter selects events. Zero fields match everything.
type QueryFilter struct {
	Types   []EventType
	Target  string
	Outcome Outcome
	Since   time.Time

	// Limit caps the number of events returned, newest first.
	Limit int
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}
