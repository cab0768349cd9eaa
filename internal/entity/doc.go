// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package entity defines the contracts between the detection pipeline and
// the host simulation that owns the entities being observed.
//
// The pipeline never simulates the world. Everything it knows about an
// entity arrives through these types:
//
//   - Snapshot: position, control state, status effects, vehicle state and
//     the host step at which the state was produced
//   - Event: a typed trigger (move, interact, teleport) with a cause chain
//   - Provider: resolves an ID to its current Snapshot
//   - World: ray casts and medium classification
//   - Mover: optional actuator used to relocate an entity
//
// Table is the in-process Provider fed by state updates from the message
// bus. It is owned by the pipeline goroutine and is not safe for concurrent
// use.
package entity
