// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package capture implements the per-sequence evidence store and the
// samplers that fill it.
//
// A Container is a heterogeneous map addressed by typed keys. Keys carry
// their value type both statically (the type parameter) and at runtime (a
// reflect.Type tag), so independent Captures can share one Container
// without knowing each other's types:
//
//	capture.Put(c, capture.HorizontalOffset, 1.0)
//	offset, ok := capture.Get(c, capture.HorizontalOffset)
//
// Keys are created once as package-level variables and compared by pointer
// identity. Two keys with the same name are still distinct slots.
package capture

import (
	"fmt"
	"reflect"
)

// AnyKey is the type-erased view of a Key, used where keys of different
// value types are listed together.
type AnyKey interface {
	Name() string
	Type() reflect.Type
}

// Key addresses a slot of type T inside a Container.
type Key[T any] struct {
	name string
	typ  reflect.Type
}

// NewKey creates a new key. Call it once per slot at package init.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name, typ: reflect.TypeFor[T]()}
}

// Name returns the key's name.
func (k *Key[T]) Name() string { return k.name }

// Type returns the runtime type tag of the key's value.
func (k *Key[T]) Type() reflect.Type { return k.typ }

// String implements fmt.Stringer.
func (k *Key[T]) String() string {
	return fmt.Sprintf("%s<%s>", k.name, k.typ)
}
