// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// decodeConfig overlays raw onto defaults and validates the result. An
// empty section yields the defaults.
func decodeConfig[T any](raw json.RawMessage, defaults T) (T, error) {
	cfg := defaults
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return defaults, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if verr := validation.ValidateStruct(&cfg); verr != nil {
		return defaults, fmt.Errorf("%w: %s", ErrInvalidConfig, verr.Error())
	}
	return cfg, nil
}

// MovementSpeedDetection owns the horizontal and vertical speed checks.
type MovementSpeedDetection struct {
	Base
	world entity.World
	cycle *stage.Cycle

	mu  sync.RWMutex
	cfg SpeedConfig
}

// NewMovementSpeedDetection creates the speed detection with default
// configuration. world may be nil. extra holds the heuristics and
// penalties appended after the checks.
func NewMovementSpeedDetection(world entity.World, extra ...stage.Stage) *MovementSpeedDetection {
	d := &MovementSpeedDetection{
		Base:  NewBase(MovementSpeedID, "Movement Speed"),
		world: world,
		cfg:   DefaultSpeedConfig(),
	}
	stages := []stage.Stage{
		stage.CheckStage(&SpeedCheck{id: HorizontalSpeedCheckID, owner: d}),
		stage.CheckStage(&SpeedCheck{id: VerticalSpeedCheckID, vertical: true, owner: d}),
	}
	d.cycle = stage.NewCycle(append(stages, extra...)...)
	return d
}

func (d *MovementSpeedDetection) Cycle() *stage.Cycle { return d.cycle }

func (d *MovementSpeedDetection) config() SpeedConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Config returns a copy of the current configuration.
func (d *MovementSpeedDetection) Config() any { return d.config() }

// Configure validates and applies a configuration section.
func (d *MovementSpeedDetection) Configure(raw json.RawMessage) error {
	cfg, err := decodeConfig(raw, DefaultSpeedConfig())
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// PenaltyThreshold implements ThresholdSource.
func (d *MovementSpeedDetection) PenaltyThreshold(penalty string) (float64, bool) {
	return d.config().Penalties.lookup(penalty)
}

// InvalidMovementDetection owns the invalid control check.
type InvalidMovementDetection struct {
	Base
	cycle *stage.Cycle

	mu  sync.RWMutex
	cfg InvalidMovementConfig
}

// NewInvalidMovementDetection creates the invalid movement detection.
func NewInvalidMovementDetection(extra ...stage.Stage) *InvalidMovementDetection {
	d := &InvalidMovementDetection{
		Base: NewBase(InvalidMovementID, "Invalid Movement"),
		cfg:  DefaultInvalidMovementConfig(),
	}
	stages := []stage.Stage{stage.CheckStage(&InvalidControlCheck{owner: d})}
	d.cycle = stage.NewCycle(append(stages, extra...)...)
	return d
}

func (d *InvalidMovementDetection) Cycle() *stage.Cycle { return d.cycle }

func (d *InvalidMovementDetection) config() InvalidMovementConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Config returns a copy of the current configuration.
func (d *InvalidMovementDetection) Config() any { return d.config() }

// Configure validates and applies a configuration section.
func (d *InvalidMovementDetection) Configure(raw json.RawMessage) error {
	cfg, err := decodeConfig(raw, DefaultInvalidMovementConfig())
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// PenaltyThreshold implements ThresholdSource.
func (d *InvalidMovementDetection) PenaltyThreshold(penalty string) (float64, bool) {
	return d.config().Penalties.lookup(penalty)
}

// ReachDetection owns the block and entity reach checks.
type ReachDetection struct {
	Base
	world entity.World
	cycle *stage.Cycle

	mu  sync.RWMutex
	cfg ReachConfig
}

// NewReachDetection creates the reach detection. world may be nil, in which
// case only obstructions reported on the trigger are tested.
func NewReachDetection(world entity.World, extra ...stage.Stage) *ReachDetection {
	d := &ReachDetection{
		Base:  NewBase(ReachID, "Reach"),
		world: world,
		cfg:   DefaultReachConfig(),
	}
	stages := []stage.Stage{
		stage.CheckStage(&ReachCheck{id: BlockReachCheckID, trigger: entity.EventInteractBlock, owner: d}),
		stage.CheckStage(&ReachCheck{id: EntityReachCheckID, trigger: entity.EventInteractEntity, owner: d}),
	}
	d.cycle = stage.NewCycle(append(stages, extra...)...)
	return d
}

func (d *ReachDetection) Cycle() *stage.Cycle { return d.cycle }

func (d *ReachDetection) config() ReachConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Config returns a copy of the current configuration.
func (d *ReachDetection) Config() any { return d.config() }

// Configure validates and applies a configuration section.
func (d *ReachDetection) Configure(raw json.RawMessage) error {
	cfg, err := decodeConfig(raw, DefaultReachConfig())
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// PenaltyThreshold implements ThresholdSource.
func (d *ReachDetection) PenaltyThreshold(penalty string) (float64, bool) {
	return d.config().Penalties.lookup(penalty)
}
