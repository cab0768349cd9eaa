// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Pipeline.TickRate != 50*time.Millisecond {
		t.Errorf("Pipeline.TickRate = %v, want 50ms", cfg.Pipeline.TickRate)
	}
	if cfg.Pipeline.TeleportTicks != 55 {
		t.Errorf("Pipeline.TeleportTicks = %d, want 55", cfg.Pipeline.TeleportTicks)
	}
	if cfg.Bus.Driver != "channel" {
		t.Errorf("Bus.Driver = %q, want channel", cfg.Bus.Driver)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want 8765", cfg.Server.Port)
	}
	if cfg.Notifiers.Webhook.Enabled || cfg.Notifiers.Discord.Enabled {
		t.Error("notifiers should be disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Audit.Enabled || cfg.Audit.MaxEvents != 10000 {
		t.Errorf("Audit = %+v, want enabled with 10000 events", cfg.Audit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"GUARDIAN_TICK_RATE", "pipeline.tick_rate"},
		{"GUARDIAN_QUEUE_SIZE", "pipeline.queue_size"},
		{"GUARDIAN_TELEPORT_TICKS", "pipeline.teleport_ticks"},
		{"BUS_DRIVER", "bus.driver"},
		{"NATS_URL", "bus.url"},
		{"NATS_EMBEDDED", "bus.embedded"},
		{"BUS_DEDUPLICATION_TTL", "bus.router.deduplication_ttl"},
		{"JOURNAL_PATH", "journal.path"},
		{"JOURNAL_IN_MEMORY", "journal.in_memory"},
		{"DISCORD_WEBHOOK_URL", "notifiers.discord.url"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"AUDIT_RETENTION", "audit.retention"},
		{"WS_ALLOWED_ORIGINS", "server.allowed_origins"},
		{"GUARDIAN_DETECTION_MOVEMENT_SPEED_ENABLED", "detections.movement_speed.enabled"},
		{"GUARDIAN_DETECTION_REACH_ENABLED", "detections.reach.enabled"},
		{"GUARDIAN_DETECTION__ENABLED", ""},
		{"GUARDIAN_DETECTION_REACH", ""},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := envTransformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadFile verifies the file layer overrides defaults and the env layer
// overrides the file.
func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  tick_rate: 100ms
  queue_size: 512
bus:
  driver: nats
  url: nats://bus.internal:4222
journal:
  in_memory: true
  path: ""
detections:
  movement_speed:
    enabled: false
    horizontal_base: 0.2
`)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GUARDIAN_QUEUE_SIZE", "2048")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() = %v", err)
	}

	if cfg.Pipeline.TickRate != 100*time.Millisecond {
		t.Errorf("Pipeline.TickRate = %v, want 100ms", cfg.Pipeline.TickRate)
	}
	if cfg.Pipeline.QueueSize != 2048 {
		t.Errorf("Pipeline.QueueSize = %d, want 2048 from env", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.TeleportTicks != 55 {
		t.Errorf("Pipeline.TeleportTicks = %d, want default 55", cfg.Pipeline.TeleportTicks)
	}
	if cfg.Bus.Driver != "nats" || cfg.Bus.URL != "nats://bus.internal:4222" {
		t.Errorf("Bus = %s %s", cfg.Bus.Driver, cfg.Bus.URL)
	}
	if cfg.Bus.StateTopic == "" {
		t.Error("Bus.StateTopic lost its default")
	}
	if !cfg.Journal.InMemory {
		t.Error("Journal.InMemory = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Output == nil {
		t.Error("Logging.Output not defaulted")
	}

	raw, enabled, err := cfg.DetectionSection("movement_speed")
	if err != nil {
		t.Fatalf("DetectionSection() = %v", err)
	}
	if enabled {
		t.Error("movement_speed should be disabled")
	}
	var section map[string]any
	if err := json.Unmarshal(raw, &section); err != nil {
		t.Fatal(err)
	}
	if _, ok := section["enabled"]; ok {
		t.Error("section still carries the enabled key")
	}
	if section["horizontal_base"] != 0.2 {
		t.Errorf("horizontal_base = %v, want 0.2", section["horizontal_base"])
	}
}

func TestLoadFile_EnvTogglesDetection(t *testing.T) {
	path := writeConfig(t, "journal:\n  in_memory: true\n")
	t.Setenv("GUARDIAN_DETECTION_REACH_ENABLED", "false")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() = %v", err)
	}
	_, enabled, err := cfg.DetectionSection("reach")
	if err != nil {
		t.Fatalf("DetectionSection() = %v", err)
	}
	if enabled {
		t.Error("reach should be disabled by environment")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero tick rate", "pipeline:\n  tick_rate: 0s\n"},
		{"unknown driver", "bus:\n  driver: kafka\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"journal without path", "journal:\n  path: \"\"\n"},
		{"notifier without url", "notifiers:\n  webhook:\n    enabled: true\n"},
		{"detection section not a mapping", "detections:\n  reach: 3\n"},
		{"malformed yaml", "pipeline: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadFile() = nil, want error")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() accepted a missing file")
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if err := os.WriteFile("config.yaml", []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove("config.yaml")
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH wins", func(t *testing.T) {
		custom := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(custom, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, custom)
		if result := ConfigFile(); result != custom {
			t.Errorf("ConfigFile() = %q, want %q", result, custom)
		}
	})
}

func TestDetectionSection(t *testing.T) {
	cfg := defaultConfig()
	cfg.Detections = map[string]any{
		"movement_speed": map[string]any{"enabled": "off", "vertical_base": 0.3},
		"reach":          map[string]any{"block_intercept": 6},
		"bad_toggle":     map[string]any{"enabled": "sometimes"},
		"scalar":         7,
	}

	tests := []struct {
		id          string
		wantEnabled bool
		wantErr     bool
		wantRaw     string
	}{
		{id: "movement_speed", wantEnabled: false, wantRaw: `{"vertical_base":0.3}`},
		{id: "reach", wantEnabled: true, wantRaw: `{"block_intercept":6}`},
		{id: "bad_toggle", wantEnabled: true, wantErr: true},
		{id: "scalar", wantEnabled: true, wantErr: true},
		{id: "invalid_movement", wantEnabled: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			raw, enabled, err := cfg.DetectionSection(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if enabled != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", enabled, tt.wantEnabled)
			}
			if tt.wantRaw != "" && string(raw) != tt.wantRaw {
				t.Errorf("raw = %s, want %s", raw, tt.wantRaw)
			}
		})
	}

	if _, _, err := cfg.DetectionSection("invalid_movement"); err != ErrNoSection {
		t.Errorf("missing section err = %v, want ErrNoSection", err)
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if s.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", s.Addr())
	}
}
