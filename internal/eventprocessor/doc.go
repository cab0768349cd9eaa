// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package eventprocessor connects Guardian to the host over a Watermill
// message bus.
//
// The host publishes entity snapshots, removals and trigger events. The
// Router decodes them and hands them to the pipeline's inbound queue.
// Guardian publishes violation reports and relocation commands back
// through an Outbox, so the tick loop never waits on the bus.
//
//	┌────────────┐  state / remove / trigger  ┌────────────┐
//	│    Host    │ ─────────────────────────▶ │   Router   │ ──▶ pipeline
//	│            │ ◀───────────────────────── │   Outbox   │ ◀── penalties
//	└────────────┘   reports / relocations    └────────────┘
//
// # Drivers
//
//   - channel: Watermill's in-process gochannel pub/sub. The default, used
//     when the host runs in the same process or in tests.
//   - nats: core NATS through watermill-nats, optionally against an
//     embedded nats-server. JetStream is not used; snapshots and triggers
//     are only meaningful on the tick they arrive.
//
// # Delivery
//
// Malformed messages are acknowledged and counted in
// guardian_bus_messages_rejected_total. Messages the pipeline refuses
// (a full inbound queue) are retried by the Retry middleware. Trigger
// events are deduplicated by event id for DeduplicationTTL.
package eventprocessor
