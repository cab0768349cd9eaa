// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package capture

import (
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

// Slots written by the standard captures.
var (
	HorizontalOffset = NewKey[float64]("horizontal_offset")
	VerticalOffset   = NewKey[float64]("vertical_offset")
	ControlTicks     = NewKey[map[entity.Mode]int]("control_ticks")
	InvalidControls  = NewKey[Set]("invalid_controls")

	MaterialAmplifier = NewKey[float64]("material_amplifier")
	MaterialTicks     = NewKey[map[entity.Medium]int]("material_ticks")

	SpeedEffect = NewKey[float64]("speed_effect")
	LiftEffect  = NewKey[float64]("lift_effect")

	InitialPosition = NewKey[entity.Vector3]("initial_position")
	FinalPosition   = NewKey[entity.Vector3]("final_position")
	PositionTicks   = NewKey[int]("position_ticks")
	InitialStep     = NewKey[uint64]("initial_step")
	FinalStep       = NewKey[uint64]("final_step")

	lastElevation = NewKey[float64]("control_last_elevation")
)

// ControlConstants are the per-tick multipliers applied by ControlCapture.
type ControlConstants struct {
	Sneak  float64 `koanf:"sneak" json:"sneak" validate:"gt=0"`
	Walk   float64 `koanf:"walk" json:"walk" validate:"gt=0"`
	Sprint float64 `koanf:"sprint" json:"sprint" validate:"gt=0"`
	Fly    float64 `koanf:"fly" json:"fly" validate:"gt=0"`
	Lift   float64 `koanf:"lift" json:"lift" validate:"gt=0"`
}

// DefaultControlConstants returns the stock locomotion multipliers.
func DefaultControlConstants() ControlConstants {
	return ControlConstants{
		Sneak:  1.015,
		Walk:   1.035,
		Sprint: 1.124,
		Fly:    1.28,
		Lift:   1.0175,
	}
}

func (cc ControlConstants) forMode(m entity.Mode) float64 {
	switch m {
	case entity.ModeSneak:
		return cc.Sneak
	case entity.ModeSprint:
		return cc.Sprint
	case entity.ModeFly:
		return cc.Fly
	default:
		return cc.Walk
	}
}

// ControlCapture folds the entity's locomotion mode into the horizontal
// and vertical offset products.
type ControlCapture struct {
	Constants ControlConstants
}

// NewControlCapture creates a control capture bound to constants.
func NewControlCapture(constants ControlConstants) *ControlCapture {
	return &ControlCapture{Constants: constants}
}

func (cc *ControlCapture) Name() string { return "control" }

func (cc *ControlCapture) Keys() []AnyKey {
	return []AnyKey{HorizontalOffset, VerticalOffset, ControlTicks, lastElevation}
}

func (cc *ControlCapture) Update(snap entity.Snapshot, c *Container) {
	mode := snap.Controls.Mode()

	Transform(c, HorizontalOffset, func(v float64, ok bool) float64 {
		if !ok {
			v = 1
		}
		return v * cc.Constants.forMode(mode)
	})

	lift := 1.0
	if prev, ok := Get(c, lastElevation); ok && snap.Position.Y > prev && !snap.OnGround {
		lift = cc.Constants.Lift
	}
	Transform(c, VerticalOffset, func(v float64, ok bool) float64 {
		if !ok {
			v = 1
		}
		return v * lift
	})
	Put(c, lastElevation, snap.Position.Y)

	Transform(c, ControlTicks, func(m map[entity.Mode]int, ok bool) map[entity.Mode]int {
		if !ok || m == nil {
			m = make(map[entity.Mode]int, 4)
		}
		m[mode]++
		return m
	})
}

// Labels recorded by InvalidControlCapture.
const (
	ControlSneaking  = "sneaking"
	ControlSprinting = "sprinting"
	ControlFlying    = "flying"
	ControlSitting   = "sitting"
	ControlSleeping  = "sleeping"
)

// InvalidControlCapture collects control flags that were reported together
// although they cannot physically coexist.
type InvalidControlCapture struct{}

// NewInvalidControlCapture creates an invalid control capture.
func NewInvalidControlCapture() *InvalidControlCapture {
	return &InvalidControlCapture{}
}

func (ic *InvalidControlCapture) Name() string { return "invalid_control" }

func (ic *InvalidControlCapture) Keys() []AnyKey { return []AnyKey{InvalidControls} }

func (ic *InvalidControlCapture) Update(snap entity.Snapshot, c *Container) {
	conflicts := InvalidCombination(snap.Controls)
	Transform(c, InvalidControls, func(s Set, ok bool) Set {
		if !ok || s == nil {
			s = NewSet()
		}
		s.Add(conflicts...)
		return s
	})
}

// InvalidCombination returns the labels of every flag involved in an
// impossible combination, or nil when the controls are consistent.
func InvalidCombination(ctl entity.Controls) []string {
	var out []string
	if ctl.Sneaking && ctl.Sprinting {
		out = append(out, ControlSneaking, ControlSprinting)
	}
	resting := ctl.Sitting || ctl.Sleeping
	if resting && (ctl.Sprinting || ctl.Flying) {
		if ctl.Sitting {
			out = append(out, ControlSitting)
		}
		if ctl.Sleeping {
			out = append(out, ControlSleeping)
		}
		if ctl.Sprinting {
			out = append(out, ControlSprinting)
		}
		if ctl.Flying {
			out = append(out, ControlFlying)
		}
	}
	return out
}

// MaterialConstants are the per-tick multipliers applied by MaterialCapture.
type MaterialConstants struct {
	Gas    float64 `koanf:"gas" json:"gas" validate:"gt=0"`
	Liquid float64 `koanf:"liquid" json:"liquid" validate:"gt=0"`
	Solid  float64 `koanf:"solid" json:"solid" validate:"gt=0"`
}

// DefaultMaterialConstants returns the stock medium multipliers.
func DefaultMaterialConstants() MaterialConstants {
	return MaterialConstants{Gas: 1.025, Liquid: 1.015, Solid: 1.045}
}

func (mc MaterialConstants) forMedium(m entity.Medium) float64 {
	switch m {
	case entity.MediumLiquid:
		return mc.Liquid
	case entity.MediumSolid:
		return mc.Solid
	default:
		return mc.Gas
	}
}

// MaterialCapture folds the medium the entity occupies into the material
// amplifier product. World may be nil, in which case the snapshot's own
// medium is used.
type MaterialCapture struct {
	Constants MaterialConstants
	World     entity.World
}

// NewMaterialCapture creates a material capture.
func NewMaterialCapture(constants MaterialConstants, world entity.World) *MaterialCapture {
	return &MaterialCapture{Constants: constants, World: world}
}

func (mc *MaterialCapture) Name() string { return "material" }

func (mc *MaterialCapture) Keys() []AnyKey { return []AnyKey{MaterialAmplifier, MaterialTicks} }

func (mc *MaterialCapture) Update(snap entity.Snapshot, c *Container) {
	medium := mc.classify(snap)

	Transform(c, MaterialAmplifier, func(v float64, ok bool) float64 {
		if !ok {
			v = 1
		}
		return v * mc.Constants.forMedium(medium)
	})
	Transform(c, MaterialTicks, func(m map[entity.Medium]int, ok bool) map[entity.Medium]int {
		if !ok || m == nil {
			m = make(map[entity.Medium]int, 3)
		}
		m[medium]++
		return m
	})
}

// classify prefers the world query, then the host's classification, then
// falls back to ground contact.
func (mc *MaterialCapture) classify(snap entity.Snapshot) entity.Medium {
	if mc.World != nil {
		if m := mc.World.MediumAt(snap.Position); m.Valid() {
			return m
		}
	}
	if snap.Medium.Valid() {
		return snap.Medium
	}
	if snap.OnGround {
		return entity.MediumSolid
	}
	return entity.MediumGas
}

// EffectConstants scale each effect level's contribution. Negative values
// reduce the allowance.
type EffectConstants struct {
	Speed      float64 `koanf:"speed" json:"speed"`
	Slowness   float64 `koanf:"slowness" json:"slowness"`
	JumpBoost  float64 `koanf:"jump_boost" json:"jump_boost"`
	Levitation float64 `koanf:"levitation" json:"levitation"`
}

// DefaultEffectConstants returns the stock effect contributions.
func DefaultEffectConstants() EffectConstants {
	return EffectConstants{
		Speed:      0.2,
		Slowness:   -0.15,
		JumpBoost:  0.1,
		Levitation: 0.9,
	}
}

// EffectCapture sums active status effects into additive accumulators.
type EffectCapture struct {
	Constants EffectConstants
}

// NewEffectCapture creates an effect capture.
func NewEffectCapture(constants EffectConstants) *EffectCapture {
	return &EffectCapture{Constants: constants}
}

func (ec *EffectCapture) Name() string { return "effect" }

func (ec *EffectCapture) Keys() []AnyKey { return []AnyKey{SpeedEffect, LiftEffect} }

func (ec *EffectCapture) Update(snap entity.Snapshot, c *Container) {
	var speed, lift float64
	for _, e := range snap.Effects {
		level := float64(e.Amplifier + 1)
		switch e.Kind {
		case entity.EffectSpeed:
			speed += level * ec.Constants.Speed
		case entity.EffectSlowness:
			speed += level * ec.Constants.Slowness
		case entity.EffectJumpBoost:
			lift += level * ec.Constants.JumpBoost
		case entity.EffectLevitation:
			lift += level * ec.Constants.Levitation
		}
	}

	Transform(c, SpeedEffect, func(v float64, _ bool) float64 { return v + speed })
	Transform(c, LiftEffect, func(v float64, _ bool) float64 { return v + lift })
}

// PositionCapture records the reference position at observation, the
// latest position, and the host steps that bound the window.
type PositionCapture struct{}

// NewPositionCapture creates a position capture.
func NewPositionCapture() *PositionCapture {
	return &PositionCapture{}
}

func (pc *PositionCapture) Name() string { return "position" }

func (pc *PositionCapture) Keys() []AnyKey {
	return []AnyKey{InitialPosition, FinalPosition, PositionTicks, InitialStep, FinalStep}
}

func (pc *PositionCapture) Start(snap entity.Snapshot, c *Container) {
	PutIfAbsent(c, InitialPosition, snap.Position)
	PutIfAbsent(c, InitialStep, snap.Step)
}

func (pc *PositionCapture) Update(snap entity.Snapshot, c *Container) {
	PutIfAbsent(c, InitialPosition, snap.Position)
	PutIfAbsent(c, InitialStep, snap.Step)
	Put(c, FinalPosition, snap.Position)
	Put(c, FinalStep, snap.Step)
	Transform(c, PositionTicks, func(n int, _ bool) int { return n + 1 })
}
