// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

// Relay forwards violation reports published on the message bus to
// websocket clients as "report" messages. With the NATS driver this
// includes reports from every Guardian instance on the bus.
type Relay struct {
	hub        *Hub
	subscriber message.Subscriber
	topic      string
}

// NewRelay creates a relay from topic to hub.
func NewRelay(hub *Hub, subscriber message.Subscriber, topic string) *Relay {
	return &Relay{hub: hub, subscriber: subscriber, topic: topic}
}

// Run relays until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.topic, err)
	}
	logging.Info().Str("topic", r.topic).Msg("report relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			r.handle(msg)
			msg.Ack()
		}
	}
}

func (r *Relay) handle(msg *message.Message) {
	var rec report.Record
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("failed to unmarshal relayed report")
		return
	}
	r.hub.BroadcastJSON(MessageTypeReport, rec)
}
