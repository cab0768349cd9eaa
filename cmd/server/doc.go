// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Command guardian runs the Guardian movement anomaly detector.

Guardian sits beside a game host. The host publishes entity snapshots,
removals and movement events on the message bus; Guardian applies them
once per tick, runs the registered detections and acts on confirmed
violations through a chain of penalties.

# Commands

	guardian [serve]      run the pipeline and every supporting service
	guardian check-config validate the configuration and print the
	                      effective detection settings
	guardian journal backup FILE
	                      write a gzip compressed journal backup
	guardian journal restore FILE
	                      load a backup into the configured journal

The journal commands open the on-disk journal directly, so the instance
using it must be stopped first.

Every command accepts --config/-c. Without it the file named by $CONFIG_PATH is
used, then the first of config.yaml, config.yml, /etc/guardian/config.yaml
and /etc/guardian/config.yml. Running without any file is valid; the
defaults describe an in-process bus, an on-disk journal and the HTTP API
on 0.0.0.0:8765.

# Components

	detection-layer   pipeline tick loop, violation journal writer
	messaging-layer   bus router (host input), bus outbox (reports and
	                  reset commands), websocket hub, report relay,
	                  trust score recovery, audit trail writer
	api-layer         HTTP API, /metrics, /ws

Every confirmed violation passes through, in order: the distribution
heuristic, then the log, notify (websocket, webhook, Discord), trust,
journal, publish and reset penalties. Each penalty applies only above its
per-detection severity threshold.

# Configuration reload

When started from a file, Guardian watches it and reapplies the
detections section between ticks. Each reload is recorded in the audit
trail. Other sections are read once at startup.

# Signals

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
server.shutdown_timeout, the journal writer flushes its queue and the
message bus is closed last.
*/
package main
