// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/eventprocessor"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/supervisor"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/guardian/config.yaml",
	"/etc/guardian/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8765,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Pipeline: pipeline.DefaultConfig(),
		Bus:      eventprocessor.DefaultBusConfig(),
		Journal:  journal.DefaultConfig(),
		Notifiers: NotifiersConfig{
			Webhook: detection.HTTPConfig{
				RateLimitMs:      500,
				FailureThreshold: 5,
				BreakerTimeout:   time.Minute,
			},
			Discord: detection.HTTPConfig{
				RateLimitMs:      1000,
				FailureThreshold: 5,
				BreakerTimeout:   time.Minute,
			},
		},
		Trust:        detection.DefaultTrustConfig(),
		Distribution: detection.DefaultDistributionConfig(),
		Logging:      logging.DefaultConfig(),
		Supervisor:   supervisor.DefaultTreeConfig(),
		Audit:        audit.DefaultConfig(),
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration from an explicit file path, still layering
// defaults below it and environment variables above it.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// GUARDIAN_TICK_RATE -> pipeline.tick_rate
	// BUS_DRIVER -> bus.driver
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if cfg.Logging.Output == nil {
		cfg.Logging.Output = os.Stderr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ConfigFile returns the file LoadWithKoanf would read, or "".
func ConfigFile() string {
	return findConfigFile()
}

// envMappings maps environment variable names (lower case) to koanf
// config paths. Unmapped variables are ignored.
var envMappings = map[string]string{
	// HTTP API
	"http_enabled":          "server.enabled",
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"rate_limit_reqs":       "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"ws_allowed_origins":    "server.allowed_origins",

	// Pipeline
	"guardian_tick_rate":        "pipeline.tick_rate",
	"guardian_queue_size":       "pipeline.queue_size",
	"guardian_teleport_ticks":   "pipeline.teleport_ticks",
	"guardian_cleanup_interval": "pipeline.cleanup_interval",

	// Message bus
	"bus_driver":            "bus.driver",
	"nats_url":              "bus.url",
	"nats_embedded":         "bus.embedded",
	"nats_embedded_host":    "bus.embedded_host",
	"nats_embedded_port":    "bus.embedded_port",
	"nats_queue_group":      "bus.queue_group",
	"nats_subscribers":      "bus.subscribers_count",
	"nats_max_reconnects":   "bus.max_reconnects",
	"nats_reconnect_wait":   "bus.reconnect_wait",
	"bus_buffer_size":       "bus.buffer_size",
	"bus_state_topic":       "bus.state_topic",
	"bus_remove_topic":      "bus.remove_topic",
	"bus_trigger_topic":     "bus.trigger_topic",
	"bus_report_topic":      "bus.report_topic",
	"bus_command_topic":     "bus.command_topic",
	"bus_retry_max_retries": "bus.router.retry_max_retries",
	"bus_deduplication_ttl": "bus.router.deduplication_ttl",

	// Violation journal
	"journal_enabled":        "journal.enabled",
	"journal_path":           "journal.path",
	"journal_in_memory":      "journal.in_memory",
	"journal_sync_writes":    "journal.sync_writes",
	"journal_retention":      "journal.retention",
	"journal_prune_interval": "journal.prune_interval",

	// Notifiers
	"webhook_enabled":       "notifiers.webhook.enabled",
	"webhook_url":           "notifiers.webhook.url",
	"webhook_rate_limit_ms": "notifiers.webhook.rate_limit_ms",
	"discord_enabled":       "notifiers.discord.enabled",
	"discord_webhook_url":   "notifiers.discord.url",
	"discord_rate_limit_ms": "notifiers.discord.rate_limit_ms",

	// Trust scores
	"trust_decrement":         "trust.decrement",
	"trust_recovery":          "trust.recovery",
	"trust_recovery_interval": "trust.recovery_interval",
	"trust_threshold":         "trust.threshold",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Audit trail
	"audit_enabled":    "audit.enabled",
	"audit_max_events": "audit.max_events",
	"audit_retention":  "audit.retention",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - GUARDIAN_TICK_RATE -> pipeline.tick_rate
//   - NATS_URL -> bus.url
//   - JOURNAL_PATH -> journal.path
//   - LOG_LEVEL -> logging.level
//   - GUARDIAN_DETECTION_MOVEMENT_SPEED_ENABLED -> detections.movement_speed.enabled
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Detections can be toggled without a config file.
	if rest, ok := strings.CutPrefix(key, "guardian_detection_"); ok {
		if id, ok := strings.CutSuffix(rest, "_enabled"); ok && id != "" {
			return "detections." + id + ".enabled"
		}
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The callback runs on the watcher goroutine; callers reload with
// LoadFile and hand the result to the pipeline, which applies it between
// ticks.
//
// Example usage:
//
//	err := WatchConfigFile(path, func() {
//	    cfg, err := LoadFile(path)
//	    if err != nil {
//	        logging.Warn().Err(err).Msg("config reload failed")
//	        return
//	    }
//	    applyDetections(ctx, p, cfg)
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
