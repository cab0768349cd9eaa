// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// Registry errors.
var (
	ErrDuplicate     = errors.New("detection already registered")
	ErrNotFound      = errors.New("detection not found")
	ErrInvalidConfig = errors.New("invalid detection configuration")
)

// Detection IDs.
const (
	MovementSpeedID   = "movement_speed"
	InvalidMovementID = "invalid_movement"
	ReachID           = "reach"
)

// Check IDs.
const (
	HorizontalSpeedCheckID = "horizontal_speed"
	VerticalSpeedCheckID   = "vertical_speed"
	InvalidControlCheckID  = "invalid_control"
	BlockReachCheckID      = "block_reach"
	EntityReachCheckID     = "entity_reach"
)

// Report types.
const (
	TypeHorizontalSpeed = "Horizontal Speed"
	TypeVerticalSpeed   = "Vertical Speed"
	TypeInvalidControl  = "Invalid Control"
	TypeBlockReach      = "Block Reach"
	TypeEntityReach     = "Entity Reach"
)

// Severity is the operator-facing level of a violation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityFor maps a numeric report severity to a level. Ratio checks sit
// in [0,1); reach severities above 1 are always critical.
func SeverityFor(s float64) Severity {
	switch {
	case s >= 0.7:
		return SeverityCritical
	case s >= 0.3:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// HasID is implemented by everything addressable by a stable identifier.
type HasID interface {
	ID() string
}

// Configurable is implemented by detections that accept a JSON
// configuration section. Configure validates before applying; an invalid
// section leaves the previous configuration in place.
type Configurable interface {
	Configure(raw json.RawMessage) error
	Config() any
}

// Detection is the unit an operator enables and disables. Its stage cycle
// is fixed at construction.
type Detection interface {
	HasID
	Configurable
	Name() string
	Cycle() *stage.Cycle
	Enabled() bool
	SetEnabled(enabled bool)
}

// ThresholdSource lets penalties look up their current severity threshold
// from the detection that owns them.
type ThresholdSource interface {
	PenaltyThreshold(penalty string) (float64, bool)
}

// Base carries the identity and enabled flag shared by every detection.
type Base struct {
	id      string
	name    string
	mu      sync.RWMutex
	enabled bool
}

// NewBase creates an enabled base.
func NewBase(id, name string) Base {
	return Base{id: id, name: name, enabled: true}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }

// Enabled returns whether the detection is enabled.
func (b *Base) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled enables or disables the detection.
func (b *Base) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// WindowConfig bounds the sampling window of one check.
type WindowConfig struct {
	// Delay is the number of sampling ticks before evaluation.
	Delay uint64 `koanf:"delay" json:"delay" validate:"gt=0"`

	// Expire bounds, in ticks of wall time, how long the sequence may live.
	Expire uint64 `koanf:"expire" json:"expire" validate:"gtfield=Delay"`

	// MinimumTickRange and MaximumTickRange bound the host steps that must
	// elapse across the window for a verdict.
	MinimumTickRange uint64 `koanf:"minimum_tick_range" json:"minimum_tick_range" validate:"gt=0,ltefield=Delay"`
	MaximumTickRange uint64 `koanf:"maximum_tick_range" json:"maximum_tick_range" validate:"gtefield=Delay"`
}

// DefaultSpeedWindow is the 40 tick analysis window of the speed checks.
func DefaultSpeedWindow() WindowConfig {
	return WindowConfig{
		Delay:            40,
		Expire:           60,
		MinimumTickRange: 30,
		MaximumTickRange: 48,
	}
}

// PenaltyConfig holds per-penalty severity thresholds. A penalty acts only
// on violations at or above its threshold.
type PenaltyConfig struct {
	Log     float64 `koanf:"log" json:"log" validate:"gte=0"`
	Notify  float64 `koanf:"notify" json:"notify" validate:"gte=0"`
	Reset   float64 `koanf:"reset" json:"reset" validate:"gte=0"`
	Journal float64 `koanf:"journal" json:"journal" validate:"gte=0"`
	Publish float64 `koanf:"publish" json:"publish" validate:"gte=0"`
	Trust   float64 `koanf:"trust" json:"trust" validate:"gte=0"`
}

// DefaultPenaltyConfig returns thresholds that log and journal every
// violation and reset only clear ones.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{
		Log:     0,
		Notify:  0.1,
		Reset:   0.3,
		Journal: 0,
		Publish: 0,
		Trust:   0.2,
	}
}

func (p PenaltyConfig) lookup(name string) (float64, bool) {
	switch name {
	case PenaltyLog:
		return p.Log, true
	case PenaltyNotify:
		return p.Notify, true
	case PenaltyReset:
		return p.Reset, true
	case PenaltyJournal:
		return p.Journal, true
	case PenaltyPublish:
		return p.Publish, true
	case PenaltyTrust:
		return p.Trust, true
	}
	return 0, false
}

// SpeedConfig configures the movement speed detection.
type SpeedConfig struct {
	Controls  capture.ControlConstants  `koanf:"controls" json:"controls"`
	Materials capture.MaterialConstants `koanf:"materials" json:"materials"`
	Effects   capture.EffectConstants   `koanf:"effects" json:"effects"`
	Window    WindowConfig              `koanf:"window" json:"window"`

	// HorizontalBase and VerticalBase are the per-tick displacement
	// allowances before modifiers.
	HorizontalBase float64 `koanf:"horizontal_base" json:"horizontal_base" validate:"gt=0"`
	VerticalBase   float64 `koanf:"vertical_base" json:"vertical_base" validate:"gt=0"`

	Penalties PenaltyConfig `koanf:"penalties" json:"penalties"`
}

// DefaultSpeedConfig returns the stock movement constants.
func DefaultSpeedConfig() SpeedConfig {
	return SpeedConfig{
		Controls:       capture.DefaultControlConstants(),
		Materials:      capture.DefaultMaterialConstants(),
		Effects:        capture.DefaultEffectConstants(),
		Window:         DefaultSpeedWindow(),
		HorizontalBase: 0.11,
		VerticalBase:   0.1,
		Penalties:      DefaultPenaltyConfig(),
	}
}

// InvalidMovementConfig configures the invalid control detection.
type InvalidMovementConfig struct {
	Window    WindowConfig  `koanf:"window" json:"window"`
	Penalties PenaltyConfig `koanf:"penalties" json:"penalties"`
}

// DefaultInvalidMovementConfig returns a short window; any single
// impossible sample is enough.
func DefaultInvalidMovementConfig() InvalidMovementConfig {
	return InvalidMovementConfig{
		Window: WindowConfig{
			Delay:            10,
			Expire:           30,
			MinimumTickRange: 5,
			MaximumTickRange: 20,
		},
		Penalties: DefaultPenaltyConfig(),
	}
}

// ReachConfig configures the block and entity reach detection.
type ReachConfig struct {
	// BlockIntercept and EntityIntercept are the maximum interaction
	// distances from the eye.
	BlockIntercept  float64 `koanf:"block_intercept" json:"block_intercept" validate:"gt=0"`
	EntityIntercept float64 `koanf:"entity_intercept" json:"entity_intercept" validate:"gt=0"`

	// ObstructionTolerance is how far short of the target a ray-cast hit
	// may land before the interaction counts as through a wall.
	ObstructionTolerance float64 `koanf:"obstruction_tolerance" json:"obstruction_tolerance" validate:"gte=0"`

	// Expire bounds the reach sequences, which evaluate on the tick after
	// the interaction.
	Expire uint64 `koanf:"expire" json:"expire" validate:"gte=2"`

	Penalties PenaltyConfig `koanf:"penalties" json:"penalties"`
}

// DefaultReachConfig returns survival reach limits.
func DefaultReachConfig() ReachConfig {
	penalties := DefaultPenaltyConfig()
	// Reach severity is distance over intercept, so 1.0 is the boundary.
	penalties.Notify = 1.0
	penalties.Reset = 1.2
	penalties.Trust = 1.1
	return ReachConfig{
		BlockIntercept:       5.0,
		EntityIntercept:      3.5,
		ObstructionTolerance: 0.5,
		Expire:               10,
		Penalties:            penalties,
	}
}

// Notifier delivers violations to an external system.
type Notifier interface {
	// Send delivers one violation.
	Send(ctx context.Context, payload *Payload) error

	// Name returns the notifier name (e.g., "webhook").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Payload is the JSON body notifiers and the websocket stream carry.
type Payload struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Detection string         `json:"detection"`
	Severity  Severity       `json:"severity"`
	Signal    *report.Signal `json:"signal,omitempty"`
	Report    report.Record  `json:"report"`
	Tick      uint64         `json:"tick"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewPayload builds the payload for a stage context.
func NewPayload(ctx stage.Context) *Payload {
	r := ctx.Report()
	sev, _, _ := ctx.Summary.Severity()
	p := &Payload{
		EventType: "violation",
		Source:    "guardian",
		Severity:  SeverityFor(sev),
		Report:    r.Record(),
		Tick:      ctx.Tick,
		Timestamp: time.Now(),
	}
	if ctx.Owner != nil {
		p.Detection = ctx.Owner.ID()
	}
	if sig, ok := ctx.Summary.Signal(); ok {
		p.Signal = &sig
	}
	return p
}

// Broadcaster streams payloads to live subscribers, typically the
// websocket hub.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Journal persists violation reports.
type Journal interface {
	Append(r *report.Report) error
}

// Publisher hands reports to the message bus.
type Publisher interface {
	PublishReport(r *report.Report) error
}
