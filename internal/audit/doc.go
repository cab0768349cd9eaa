// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package audit keeps a trail of operator actions against a running
pipeline: bypass tickets opened and closed through the API, detections
reconfigured or toggled, and configuration file reloads.

Events are queued by Logger.Log without blocking the caller and written
to a Store by Logger.Run, which the supervisor tree runs as the
"audit-writer" service. Every written event is also logged through
zerolog with its request ID, so an action can be traced from the audit
trail to the request's log lines.

	store := audit.NewMemoryStore(cfg.MaxEvents)
	trail := audit.NewLogger(store, cfg)
	go trail.Run(ctx)

	trail.Log(&audit.Event{
	    Type:    audit.EventTypeBypassOpened,
	    Outcome: audit.OutcomeSuccess,
	    Actor:   audit.APIActor(r),
	    Target:  "steve",
	})

	recent, _ := trail.Query(ctx, audit.QueryFilter{Limit: 50})
*/
package audit
