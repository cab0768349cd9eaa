// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package config provides centralized configuration management for Guardian.

Configuration is layered with koanf, lowest priority first:

 1. Defaults: defaultConfig(), loaded through the structs provider
 2. Config file: YAML from CONFIG_PATH, ./config.yaml or /etc/guardian/config.yaml
 3. Environment variables: an explicit mapping table (see envMappings)

Each section is owned by the package that consumes it:

  - server: HTTP API listener and rate limiting
  - pipeline: tick rate, inbound queue size, teleport bypass length
  - bus: message bus driver (channel or nats) and topics
  - journal: BadgerDB violation journal
  - notifiers: webhook and Discord delivery
  - trust, distribution: cross-detection heuristics
  - logging: zerolog level and format
  - detections: one free-form section per detection ID

# Detection Sections

Detection sections are not decoded here. DetectionSection returns a
section as JSON so each detection decodes and validates it on its own; an
invalid section rejects that detection only.

	detections:
	  movement_speed:
	    enabled: true
	    horizontal_base: 0.11
	    window:
	      delay: 40
	      expire: 80
	  reach:
	    enabled: false

# Environment Variables

  - GUARDIAN_TICK_RATE: tick interval (default: 50ms)
  - GUARDIAN_QUEUE_SIZE: inbound command queue (default: 4096)
  - GUARDIAN_TELEPORT_TICKS: teleport bypass length (default: 55)
  - GUARDIAN_DETECTION_<ID>_ENABLED: toggle one detection
  - BUS_DRIVER: channel or nats (default: channel)
  - NATS_URL, NATS_EMBEDDED: NATS connection
  - JOURNAL_PATH, JOURNAL_RETENTION: violation journal
  - WEBHOOK_URL, DISCORD_WEBHOOK_URL: notifiers
  - HTTP_HOST, HTTP_PORT: API listener (default: 0.0.0.0:8765)
  - LOG_LEVEL, LOG_FORMAT: logging

# Hot Reload

WatchConfigFile re-runs a callback when the file changes. Only detection
sections are applied live; the pipeline applies them between ticks.
*/
package config
