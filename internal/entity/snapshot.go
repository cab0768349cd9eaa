// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package entity

// ID is an opaque handle to one live entity in the host simulation.
type ID string

// Mode is the locomotion mode an entity is moving in during one tick.
type Mode string

const (
	ModeWalk   Mode = "walk"
	ModeSneak  Mode = "sneak"
	ModeSprint Mode = "sprint"
	ModeFly    Mode = "fly"
)

// Medium classifies the material an entity occupies.
type Medium string

const (
	MediumGas    Medium = "gas"
	MediumLiquid Medium = "liquid"
	MediumSolid  Medium = "solid"
)

// Valid reports whether m is one of the known media.
func (m Medium) Valid() bool {
	switch m {
	case MediumGas, MediumLiquid, MediumSolid:
		return true
	default:
		return false
	}
}

// EffectKind names a status effect that changes movement capability.
type EffectKind string

const (
	EffectSpeed      EffectKind = "speed"
	EffectSlowness   EffectKind = "slowness"
	EffectJumpBoost  EffectKind = "jump_boost"
	EffectLevitation EffectKind = "levitation"
)

// Effect is one active status effect. Amplifier 0 is level I.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Amplifier int        `json:"amplifier"`
}

// Controls is the raw control state reported by the host. Several flags may
// be set at once, including combinations that are logically impossible.
type Controls struct {
	Sneaking  bool `json:"sneaking"`
	Sprinting bool `json:"sprinting"`
	Flying    bool `json:"flying"`
	Sitting   bool `json:"sitting"`
	Sleeping  bool `json:"sleeping"`
}

// Mode returns the dominant locomotion mode. Flying wins over sprinting,
// sprinting over sneaking.
func (c Controls) Mode() Mode {
	switch {
	case c.Flying:
		return ModeFly
	case c.Sprinting:
		return ModeSprint
	case c.Sneaking:
		return ModeSneak
	default:
		return ModeWalk
	}
}

// Snapshot is the state of one entity as of one host step.
type Snapshot struct {
	ID        ID       `json:"id" validate:"required"`
	Position  Vector3  `json:"position"`
	EyeHeight float64  `json:"eye_height" validate:"finite"`
	OnGround  bool     `json:"on_ground"`
	InVehicle bool     `json:"in_vehicle"`
	Controls  Controls `json:"controls"`
	Effects   []Effect `json:"effects,omitempty"`

	// Medium is the host's own classification. World.MediumAt takes
	// precedence when a world query is available.
	Medium Medium `json:"medium,omitempty"`

	// Step is the host simulation step that produced this state. Table
	// stamps the pipeline tick when the host leaves it zero.
	Step uint64 `json:"step"`
}

// Eye returns the eye-height adjusted origin used for interaction checks.
func (s Snapshot) Eye() Vector3 {
	return Vector3{X: s.Position.X, Y: s.Position.Y + s.EyeHeight, Z: s.Position.Z}
}

// Provider resolves an entity to its current snapshot. The second return
// value is false when the entity is unresolvable (disconnected, removed).
type Provider interface {
	Snapshot(id ID) (Snapshot, bool)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(id ID) (Snapshot, bool)

// Snapshot implements Provider.
func (f ProviderFunc) Snapshot(id ID) (Snapshot, bool) {
	return f(id)
}

// World answers geometry questions about the host world. Implementations
// must be synchronous and bounded in cost; they run inside the tick.
type World interface {
	// RayCast returns the distance to the first obstruction along direction
	// from origin within maxDistance. hit is false when nothing obstructs.
	RayCast(origin, direction Vector3, maxDistance float64) (distance float64, hit bool)

	// MediumAt classifies the medium at a point.
	MediumAt(point Vector3) Medium
}

// Mover relocates an entity in the host simulation.
type Mover interface {
	Relocate(id ID, position Vector3) error
}
