// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package cache

import (
	"sync"
)

// HeapEntry represents an entry in the tick heap, keyed by due tick.
type HeapEntry[T any] struct {
	Key   string
	Value T
	Due   uint64
	seq   uint64 // insertion order, breaks ties between equal Due ticks
	index int    // index in the heap array, used for O(log n) updates
}

// TickHeap implements a min-heap ordered by due tick. Entries with the same
// due tick pop in insertion order.
//
// This is used for:
//   - Bypass ticket auto-close (one-shot tasks scheduled N ticks ahead)
//   - Deferred penalty actions
//
// The heap maintains a parallel map for O(1) key lookup.
type TickHeap[T any] struct {
	mu     sync.RWMutex
	heap   []*HeapEntry[T]
	byKey  map[string]*HeapEntry[T]
	nextSq uint64
}

// NewTickHeap creates an empty tick heap.
func NewTickHeap[T any]() *TickHeap[T] {
	return &TickHeap[T]{
		heap:  make([]*HeapEntry[T], 0),
		byKey: make(map[string]*HeapEntry[T]),
	}
}

// Push adds an entry to the heap.
// If an entry with the same key exists, it is rescheduled.
func (h *TickHeap[T]) Push(key string, value T, due uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSq++

	if existing, exists := h.byKey[key]; exists {
		existing.Value = value
		existing.Due = due
		existing.seq = h.nextSq
		h.fix(existing.index)
		return
	}

	entry := &HeapEntry[T]{
		Key:   key,
		Value: value,
		Due:   due,
		seq:   h.nextSq,
		index: len(h.heap),
	}

	h.heap = append(h.heap, entry)
	h.byKey[key] = entry
	h.bubbleUp(entry.index)
}

// Pop removes and returns the earliest entry.
// Returns nil if the heap is empty.
func (h *TickHeap[T]) Pop() *HeapEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.heap) == 0 {
		return nil
	}
	return h.removeAt(0)
}

// Peek returns the earliest entry without removing it.
// Returns nil if the heap is empty.
func (h *TickHeap[T]) Peek() *HeapEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.heap) == 0 {
		return nil
	}
	return h.heap[0]
}

// Get retrieves an entry by key without removing it.
// Returns nil if not found.
func (h *TickHeap[T]) Get(key string) *HeapEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.byKey[key]
}

// Remove removes an entry by key.
// Returns the removed entry, or nil if not found.
func (h *TickHeap[T]) Remove(key string) *HeapEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, exists := h.byKey[key]
	if !exists {
		return nil
	}

	return h.removeAt(entry.index)
}

// Len returns the number of entries in the heap.
func (h *TickHeap[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.heap)
}

// PopDue removes and returns all entries due at or before tick, earliest
// first.
func (h *TickHeap[T]) PopDue(tick uint64) []*HeapEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	var entries []*HeapEntry[T]
	for len(h.heap) > 0 && h.heap[0].Due <= tick {
		entries = append(entries, h.removeAt(0))
	}
	return entries
}

// Clear removes all entries from the heap.
func (h *TickHeap[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.heap = make([]*HeapEntry[T], 0)
	h.byKey = make(map[string]*HeapEntry[T])
}

// Internal heap operations (must be called with lock held)

func (h *TickHeap[T]) less(i, j int) bool {
	a, b := h.heap[i], h.heap[j]
	if a.Due != b.Due {
		return a.Due < b.Due
	}
	return a.seq < b.seq
}

// removeAt removes the element at the given index.
func (h *TickHeap[T]) removeAt(i int) *HeapEntry[T] {
	n := len(h.heap) - 1
	entry := h.heap[i]

	delete(h.byKey, entry.Key)

	if i == n {
		h.heap = h.heap[:n]
		return entry
	}

	// Move last element to position i
	h.heap[i] = h.heap[n]
	h.heap[i].index = i
	h.heap = h.heap[:n]

	h.fix(i)

	return entry
}

// fix restores heap order after the entry at index i changed.
func (h *TickHeap[T]) fix(i int) {
	if h.bubbleUp(i) {
		return
	}
	h.bubbleDown(i)
}

// bubbleUp moves element at index i up to its correct position.
// Returns true if the element moved.
func (h *TickHeap[T]) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

// bubbleDown moves element at index i down to its correct position.
func (h *TickHeap[T]) bubbleDown(i int) {
	n := len(h.heap)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}

		if smallest == i {
			break
		}

		h.swap(i, smallest)
		i = smallest
	}
}

func (h *TickHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}
