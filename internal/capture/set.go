// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package capture

import "sort"

// Set is an unordered collection of labels.
type Set map[string]struct{}

// NewSet creates a set holding the given labels.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts labels into the set.
func (s Set) Add(labels ...string) {
	for _, l := range labels {
		s[l] = struct{}{}
	}
}

// Contains reports whether label is present.
func (s Set) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted returns the labels in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
