// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package websocket streams violations and reports to live clients.

It uses gorilla/websocket with the hub-client pattern:

	┌──────────┐      ┌──────────┐
	│  Relay   │ ───► │   Hub    │ ◄─── NotifyPenalty (BroadcastJSON)
	└──────────┘      └────┬─────┘
	  bus reports          │
	             ┌─────────┼─────────┐
	             │         │         │
	          Client1   Client2   Client3

The Hub implements detection.Broadcaster, so the notify penalty pushes a
"violation" message for every confirmed violation of the local pipeline.
The Relay subscribes to the report topic of the message bus and pushes
"report" messages, which with the NATS driver covers every Guardian
instance on the bus.

Message Types:

  - violation: a detection.Payload from the notify penalty
  - report: a report.Record relayed from the bus
  - trust: a detection.TrustScore for an entity that fell below the
    restriction threshold
  - ping / pong: application-level keepalive
  - subscribe: sent by a client with {"entity": "<id>"} to receive only
    messages about one entity; an empty entity clears the filter

Messages carry an "entity" field when they are about one entity. Messages
without it reach every client regardless of filter.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	// in the /ws handler, after upgrading
	client := websocket.NewClient(hub, conn)
	hub.Register <- client
	client.Start()

Slow clients whose 256-message buffer fills are disconnected rather than
blocking the broadcast loop. Inbound messages are limited to 4 KiB.
*/
package websocket
