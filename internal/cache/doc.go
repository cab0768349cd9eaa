// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package cache provides small in-memory data structures used by the tick
pipeline and its heuristics.

# Structures

  - TickHeap: min-heap of keyed entries ordered by due tick, FIFO among
    equal ticks. Backs the one-shot task scheduler.
  - SlidingWindowCounter / SlidingWindowStore: bucketed counters over a
    window measured in ticks, one counter per key. Used by heuristics to
    count recent violations per entity.
  - LRUCache: bounded LRU with optional TTL. Holds per-entity heuristic
    state and deduplicates redelivered bus messages.

# Thread Safety

Every structure guards itself with a mutex. The pipeline drives most of
them from a single goroutine, but the bus handlers share the LRU.

# Usage Example

	h := cache.NewTickHeap[func()]()
	h.Push("ticket:42", closeTicket, now+55)
	for _, e := range h.PopDue(now) {
	    e.Value()
	}
*/
package cache
