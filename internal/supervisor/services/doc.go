// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package services provides suture.Service wrappers for Guardian components.

Each wrapper implements

	type Service interface {
	    Serve(ctx context.Context) error
	}

and fmt.Stringer, so suture logs the service by name.

# Available Services

  - HTTPServerService ("http-api"): ListenAndServe with graceful Shutdown
  - BusRouterService ("bus-router"): builds a fresh watermill router per
    start, since a closed router cannot run again
  - RunnerService: any blocking loop that returns when ctx ends. The
    constructors name the Guardian loops: "pipeline", "websocket-hub",
    "journal-writer", "bus-outbox", "report-relay", "trust-recovery" and
    "audit-writer"

The wrappers depend on small interfaces rather than the component
packages, so this package imports nothing from Guardian.
*/
package services
