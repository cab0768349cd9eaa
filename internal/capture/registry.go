// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package capture

import (
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

// Samples counts how many times a Registry has sampled its captures.
var Samples = NewKey[int]("samples")

// Capture samples one entity snapshot into a Container. Update is called at
// most once per tick per sequence and must derive its result only from the
// snapshot and the values already in the container.
type Capture interface {
	// Name identifies the capture in logs.
	Name() string

	// Keys lists the slots the capture owns.
	Keys() []AnyKey

	// Update folds one snapshot into the container.
	Update(snap entity.Snapshot, c *Container)
}

// Starter is implemented by captures that seed reference values when the
// sequence is observed. Captures must still tolerate Update running first.
type Starter interface {
	Start(snap entity.Snapshot, c *Container)
}

// Registry binds a fixed set of captures to one container for the lifetime
// of one sequence.
type Registry struct {
	captures  []Capture
	container *Container
}

// NewRegistry creates a registry over the given captures with an empty
// container.
func NewRegistry(captures ...Capture) *Registry {
	bound := make([]Capture, len(captures))
	copy(bound, captures)
	return &Registry{
		captures:  bound,
		container: NewContainer(),
	}
}

// Container returns the shared container.
func (r *Registry) Container() *Container {
	return r.container
}

// Captures returns the bound captures in registration order.
func (r *Registry) Captures() []Capture {
	return r.captures
}

// Start runs the start hook of every capture that has one.
func (r *Registry) Start(snap entity.Snapshot) {
	for _, c := range r.captures {
		if s, ok := c.(Starter); ok {
			s.Start(snap, r.container)
		}
	}
}

// Update samples every capture exactly once and advances the sample
// counter by one.
func (r *Registry) Update(snap entity.Snapshot) {
	for _, c := range r.captures {
		c.Update(snap, r.container)
	}
	Transform(r.container, Samples, func(n int, _ bool) int { return n + 1 })
}

// Samples returns how many times Update has run.
func (r *Registry) Samples() int {
	return GetOr(r.container, Samples, 0)
}
