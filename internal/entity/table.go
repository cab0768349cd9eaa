// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package entity

// Table holds the latest snapshot of every live entity. It implements
// Provider and is driven exclusively by the pipeline goroutine.
type Table struct {
	entries map[ID]Snapshot
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[ID]Snapshot)}
}

// Update stores snap as the latest state of its entity. A zero Step is
// replaced by the given tick so the capture window can still be measured.
func (t *Table) Update(snap Snapshot, tick uint64) {
	if snap.Step == 0 {
		snap.Step = tick
	}
	t.entries[snap.ID] = snap
}

// Remove drops an entity. Subsequent lookups report it unresolvable.
func (t *Table) Remove(id ID) {
	delete(t.entries, id)
}

// Snapshot implements Provider.
func (t *Table) Snapshot(id ID) (Snapshot, bool) {
	snap, ok := t.entries[id]
	return snap, ok
}

// Len returns the number of tracked entities.
func (t *Table) Len() int {
	return len(t.entries)
}
