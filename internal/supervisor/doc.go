// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package supervisor runs Guardian's long-lived goroutines under suture v4.

# Tree

	guardian
	├── detection-layer
	│   ├── pipeline        (tick loop, owns all detection state)
	│   └── journal-writer  (if journal.enabled)
	├── messaging-layer
	│   ├── bus-router      (entity state, removals and commands from the bus)
	│   ├── bus-outbox      (reports and reset commands to the bus)
	│   ├── websocket-hub
	│   ├── report-relay    (bus reports to websocket clients)
	│   ├── trust-recovery
	│   └── audit-writer    (operator audit trail)
	└── api-layer
	    └── http-api        (if server.enabled)

Each layer has its own failure count, so a restart storm in the messaging
layer backs off without touching the pipeline. Supervisor events are
logged through sutureslog with the zerolog-backed slog handler from
internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
	    return err
	}
	tree.AddDetectionService(services.NewPipelineService(p))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

The service adapters live in the services subpackage.
*/
package supervisor
