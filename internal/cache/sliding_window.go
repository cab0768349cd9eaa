// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package cache

import (
	"sync"
)

// SlidingWindowCounter implements a memory-efficient sliding window counter
// over simulation ticks. It divides the window into buckets and sums them
// to get the count within the window.
//
// This is useful for:
//   - Heuristics (e.g., violations per entity in the last 1200 ticks)
//   - Per-tick rate accounting without keeping every event
//
// Complexity:
//   - Increment: O(1)
//   - Count: O(k) where k = number of buckets (typically 10-60)
//   - Memory: O(k) per counter
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64 // circular buffer of bucket counts
	bucketSize uint64  // ticks per bucket
	numBuckets int
	current    int    // current bucket index
	bucketTick uint64 // first tick of the current bucket
	lastTick   uint64 // most recent tick seen, for Count without a tick
}

// NewSlidingWindowCounter creates a new sliding window counter.
// The window is divided into the specified number of buckets.
//
// Example: NewSlidingWindowCounter(1200, 10) creates a 1200-tick window
// with 120-tick buckets.
func NewSlidingWindowCounter(windowTicks uint64, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowTicks == 0 {
		windowTicks = 1200
	}
	bucketSize := windowTicks / uint64(numBuckets)
	if bucketSize == 0 {
		bucketSize = 1
	}

	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: bucketSize,
		numBuckets: numBuckets,
	}
}

// Increment adds delta to the bucket holding tick.
func (sw *SlidingWindowCounter) Increment(tick uint64, delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance(tick)
	sw.buckets[sw.current] += delta
}

// Count returns the sum of all buckets in the window ending at tick.
func (sw *SlidingWindowCounter) Count(tick uint64) int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance(tick)

	var total int64
	for _, count := range sw.buckets {
		total += count
	}
	return total
}

// LastTick returns the most recent tick the counter was advanced to.
func (sw *SlidingWindowCounter) LastTick() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.lastTick
}

// Reset clears all buckets.
func (sw *SlidingWindowCounter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = 0
	}
	sw.current = 0
	sw.bucketTick = sw.lastTick
}

// advance moves the window forward to tick. Ticks older than the current
// bucket are folded into it. Must be called with lock held.
func (sw *SlidingWindowCounter) advance(tick uint64) {
	if tick > sw.lastTick {
		sw.lastTick = tick
	}
	if tick < sw.bucketTick+sw.bucketSize {
		return
	}

	bucketsElapsed := (tick - sw.bucketTick) / sw.bucketSize

	if bucketsElapsed >= uint64(sw.numBuckets) {
		// Entire window has elapsed, clear all
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
	} else {
		for i := uint64(0); i < bucketsElapsed; i++ {
			sw.current = (sw.current + 1) % sw.numBuckets
			sw.buckets[sw.current] = 0
		}
	}

	sw.bucketTick += bucketsElapsed * sw.bucketSize
}

// SlidingWindowStore manages multiple sliding window counters by key.
// This is useful for tracking per-entity counts.
//
// Example usage:
//
//	store := NewSlidingWindowStore(1200, 10, 4096)
//	store.Increment("entity:123", tick)
//	count := store.Count("entity:123", tick)
type SlidingWindowStore struct {
	mu          sync.RWMutex
	counters    map[string]*SlidingWindowCounter
	windowTicks uint64
	numBuckets  int
	maxKeys     int // maximum number of keys (0 = unlimited)
}

// NewSlidingWindowStore creates a new store for sliding window counters.
func NewSlidingWindowStore(windowTicks uint64, numBuckets, maxKeys int) *SlidingWindowStore {
	return &SlidingWindowStore{
		counters:    make(map[string]*SlidingWindowCounter),
		windowTicks: windowTicks,
		numBuckets:  numBuckets,
		maxKeys:     maxKeys,
	}
}

// Increment adds 1 to the counter for the given key.
func (s *SlidingWindowStore) Increment(key string, tick uint64) {
	s.IncrementBy(key, tick, 1)
}

// IncrementBy adds delta to the counter for the given key.
func (s *SlidingWindowStore) IncrementBy(key string, tick uint64, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, exists := s.counters[key]
	if !exists {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictStalest()
		}

		counter = NewSlidingWindowCounter(s.windowTicks, s.numBuckets)
		counter.bucketTick = tick
		counter.lastTick = tick
		s.counters[key] = counter
	}

	counter.Increment(tick, delta)
}

// Count returns the count for the given key within the window ending at
// tick.
func (s *SlidingWindowStore) Count(key string, tick uint64) int64 {
	s.mu.RLock()
	counter, exists := s.counters[key]
	s.mu.RUnlock()

	if !exists {
		return 0
	}
	return counter.Count(tick)
}

// Remove removes the counter for the given key.
func (s *SlidingWindowStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// Len returns the number of counters in the store.
func (s *SlidingWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// CleanupInactive removes counters that have no counts in the window
// ending at tick. Returns the number of counters removed.
func (s *SlidingWindowStore) CleanupInactive(tick uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, counter := range s.counters {
		if counter.Count(tick) == 0 {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// evictStalest removes the counter that was advanced least recently.
// Must be called with lock held.
func (s *SlidingWindowStore) evictStalest() {
	var (
		stalestKey  string
		stalestTick uint64
		found       bool
	)
	for key, counter := range s.counters {
		lt := counter.LastTick()
		if !found || lt < stalestTick {
			stalestKey, stalestTick, found = key, lt, true
		}
	}
	if found {
		delete(s.counters, stalestKey)
	}
}
