// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package capture

import "sort"

// Container maps keys to values of the key's type. It is owned by a single
// sequence and is not safe for concurrent use.
type Container struct {
	values map[AnyKey]any
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{values: make(map[AnyKey]any)}
}

// Get returns the value stored under key. The second result is false when
// the slot is empty or holds a value of another type.
func Get[T any](c *Container, key *Key[T]) (T, bool) {
	var zero T
	raw, ok := c.values[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetOr returns the value stored under key, or def when absent.
func GetOr[T any](c *Container, key *Key[T], def T) T {
	if v, ok := Get(c, key); ok {
		return v
	}
	return def
}

// Put stores value under key unconditionally.
func Put[T any](c *Container, key *Key[T], value T) {
	c.values[key] = value
}

// PutIfAbsent stores value only when the slot is empty. It reports whether
// the value was stored.
func PutIfAbsent[T any](c *Container, key *Key[T], value T) bool {
	if _, ok := Get(c, key); ok {
		return false
	}
	c.values[key] = value
	return true
}

// Transform replaces the value under key with fn(current, present) and
// returns the new value. A slot holding a mismatched type is treated as
// absent and overwritten.
func Transform[T any](c *Container, key *Key[T], fn func(current T, present bool) T) T {
	current, ok := Get(c, key)
	next := fn(current, ok)
	c.values[key] = next
	return next
}

// Has reports whether key holds a value of its declared type.
func Has[T any](c *Container, key *Key[T]) bool {
	_, ok := Get(c, key)
	return ok
}

// Delete clears the slot addressed by key.
func (c *Container) Delete(key AnyKey) {
	delete(c.values, key)
}

// Len returns the number of occupied slots.
func (c *Container) Len() int {
	return len(c.values)
}

// Names returns the names of occupied slots in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.values))
	for k := range c.values {
		names = append(names, k.Name())
	}
	sort.Strings(names)
	return names
}
