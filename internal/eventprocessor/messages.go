// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

// Metadata keys set on every outgoing message.
const (
	MetadataKind   = "kind"
	MetadataEntity = "entity"
)

// ErrMalformed marks a message that can never be processed.
var ErrMalformed = errors.New("malformed message")

// RemoveMessage tells Guardian an entity left the host.
type RemoveMessage struct {
	Entity entity.ID `json:"entity"`
}

// RelocateCommand asks the host to move an entity.
type RelocateCommand struct {
	ID       string         `json:"id"`
	Entity   entity.ID      `json:"entity"`
	Position entity.Vector3 `json:"position"`
	Reason   string         `json:"reason"`
	IssuedAt time.Time      `json:"issued_at"`
}

// NewJSONMessage encodes v as a message with a fresh UUID.
func NewJSONMessage(kind string, id entity.ID, v any) (*message.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataKind, kind)
	if id != "" {
		msg.Metadata.Set(MetadataEntity, string(id))
	}
	return msg, nil
}

// DecodeSnapshot decodes a state update.
func DecodeSnapshot(msg *message.Message) (entity.Snapshot, error) {
	var snap entity.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		return snap, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if snap.ID == "" {
		return snap, fmt.Errorf("%w: snapshot without id", ErrMalformed)
	}
	return snap, nil
}

// DecodeEvent decodes a trigger event. A missing event id falls back to
// the message UUID.
func DecodeEvent(msg *message.Message) (entity.Event, error) {
	var ev entity.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Entity == "" || ev.Type == "" {
		return ev, fmt.Errorf("%w: event without entity or type", ErrMalformed)
	}
	if ev.ID == "" {
		ev.ID = msg.UUID
	}
	return ev, nil
}

// DecodeRemove decodes an entity removal.
func DecodeRemove(msg *message.Message) (entity.ID, error) {
	var rm RemoveMessage
	if err := json.Unmarshal(msg.Payload, &rm); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rm.Entity == "" {
		return "", fmt.Errorf("%w: removal without entity", ErrMalformed)
	}
	return rm.Entity, nil
}
