// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package detection provides the movement detections, their checks and the
// heuristics and penalties that act on their reports.
//
// Detection Architecture:
//
//	Trigger -> Sequence Manager -> Check Condition -> Report
//	                                                    |
//	                                                    v
//	                          Heuristics (veto / signal) -> Penalties
//	                                                          |
//	                      log / notify / reset / journal / publish / trust
//
// A Detection owns a fixed stage cycle. Its checks produce blueprints from
// the detection's live configuration, so a reconfiguration applies to
// sequences started after it while in-flight sequences finish under the
// blueprint they started with. The Registry indexes the enabled checks by
// trigger type and serves as the sequence manager's blueprint source.
//
// Supported Checks:
//   - Horizontal Speed: planar displacement against the derived allowance
//   - Vertical Speed: upward displacement against the lift allowance
//   - Invalid Control: mutually exclusive control states seen together
//   - Block Reach and Entity Reach: interaction distance and line of sight
//
// Speed allowance:
//
//	allowed = base * offset^(1/n) * material^(1/n) * max(0, 1+effect/n) * clockTicks
//
// Trust Scoring:
// Each entity maintains a trust score (0-100) that decreases with penalized
// violations and gradually recovers over time. Crossing the restriction
// threshold invokes the escalation hook once.
package detection
