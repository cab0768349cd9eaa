// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/eventprocessor"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/supervisor"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// ErrNoSection is returned by DetectionSection when the configuration has
// no section for a detection.
var ErrNoSection = errors.New("no configuration section")

// Config holds all application configuration
type Config struct {
	Server       ServerConfig                 `koanf:"server"`
	Pipeline     pipeline.Config              `koanf:"pipeline"`
	Bus          eventprocessor.BusConfig     `koanf:"bus"`
	Journal      journal.Config               `koanf:"journal"`
	Notifiers    NotifiersConfig              `koanf:"notifiers"`
	Trust        detection.TrustConfig        `koanf:"trust"`
	Distribution detection.DistributionConfig `koanf:"distribution"`
	Logging      logging.Config               `koanf:"logging"`
	Supervisor   supervisor.TreeConfig        `koanf:"supervisor"`
	Audit        audit.Config                 `koanf:"audit"`

	// Detections holds one free-form section per detection ID. Each
	// detection decodes and validates its own section; the reserved key
	// "enabled" toggles the detection.
	Detections map[string]any `koanf:"detections"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// RateLimitReqs requests per RateLimitWindow are allowed per client IP.
	// Zero disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	// AllowedOrigins lists browser origins accepted on /ws. "*" accepts any.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NotifiersConfig configures outbound violation notifications.
type NotifiersConfig struct {
	Webhook detection.HTTPConfig `koanf:"webhook"`
	Discord detection.HTTPConfig `koanf:"discord"`
}

// Validate checks every section. Detection sections are validated by the
// detections themselves when they are registered or reconfigured.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return errors.New("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	for name, n := range map[string]detection.HTTPConfig{
		"webhook": c.Notifiers.Webhook,
		"discord": c.Notifiers.Discord,
	} {
		if n.Enabled && n.URL == "" {
			return fmt.Errorf("notifiers.%s.url is required when the notifier is enabled", name)
		}
	}
	for id, section := range c.Detections {
		if _, ok := section.(map[string]any); !ok && section != nil {
			return fmt.Errorf("detections.%s must be a mapping", id)
		}
	}
	return nil
}

// DetectionSection returns the configuration section of one detection as
// JSON, with the reserved "enabled" key removed, and whether the detection
// is enabled. A missing section yields ErrNoSection and enabled true.
func (c *Config) DetectionSection(id string) (json.RawMessage, bool, error) {
	section, ok := c.Detections[id]
	if !ok || section == nil {
		return nil, true, ErrNoSection
	}
	m, ok := section.(map[string]any)
	if !ok {
		return nil, true, fmt.Errorf("detections.%s must be a mapping", id)
	}

	enabled := true
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != "enabled" {
			rest[k] = v
			continue
		}
		b, ok := toBool(v)
		if !ok {
			return nil, true, fmt.Errorf("detections.%s.enabled must be a boolean", id)
		}
		enabled = b
	}

	raw, err := json.Marshal(rest)
	if err != nil {
		return nil, enabled, fmt.Errorf("encode detections.%s: %w", id, err)
	}
	return raw, enabled, nil
}

// toBool accepts booleans from YAML and strings from environment variables.
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}
