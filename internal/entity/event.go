// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package entity

import "time"

// EventType identifies the kind of trigger event delivered by the host.
type EventType string

const (
	// EventMove fires when an entity changes position.
	EventMove EventType = "entity.move"

	// EventInteractBlock fires when an entity interacts with a block.
	EventInteractBlock EventType = "entity.interact_block"

	// EventInteractEntity fires when an entity interacts with another entity.
	EventInteractEntity EventType = "entity.interact_entity"

	// EventTeleport fires when the host relocates an entity instantly.
	EventTeleport EventType = "entity.teleport"
)

// CauseKind classifies one link in an event's cause chain.
type CauseKind string

const (
	CausePlayer CauseKind = "player"
	CausePlugin CauseKind = "plugin"
	CauseHost   CauseKind = "host"
)

// Cause is one link in an event's cause chain. The first link is the root.
type Cause struct {
	Kind CauseKind `json:"kind"`
	Name string    `json:"name,omitempty"`
}

// Event is a typed trigger delivered by the host for one entity.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Entity    ID        `json:"entity"`
	Cause     []Cause   `json:"cause,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Target is the interaction point for interact events.
	Target *Vector3 `json:"target,omitempty"`

	// TargetEntity is set for entity interactions.
	TargetEntity ID `json:"target_entity,omitempty"`

	// Obstruction is the host-computed distance from the entity's eyes to
	// the first solid block on the line towards Target. Nil means the host
	// did not trace the line.
	Obstruction *float64 `json:"obstruction,omitempty"`
}

// HostOriginated reports whether the root cause of the event is the host or
// a plugin rather than the entity's own controller. Such events never
// trigger sequences. An empty cause chain is treated as player-originated.
func (e Event) HostOriginated() bool {
	if len(e.Cause) == 0 {
		return false
	}
	root := e.Cause[0].Kind
	return root == CauseHost || root == CausePlugin
}
