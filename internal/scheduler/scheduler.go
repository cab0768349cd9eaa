// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package scheduler runs one-shot tasks a fixed number of ticks in the
// future. It is driven by the pipeline goroutine; tasks run synchronously
// inside Advance.
package scheduler

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/cache"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
)

// Task is a handle to a scheduled function.
type Task struct {
	s   *Scheduler
	key string
	due uint64
}

// Due returns the tick the task runs at.
func (t *Task) Due() uint64 { return t.due }

// Cancel prevents the task from running. It reports whether the task was
// still pending.
func (t *Task) Cancel() bool {
	return t.s.heap.Remove(t.key) != nil
}

// Scheduler holds pending tasks ordered by due tick.
type Scheduler struct {
	heap   *cache.TickHeap[func()]
	now    uint64
	nextID uint64
	logger zerolog.Logger
}

// New creates a scheduler positioned at tick 0.
func New() *Scheduler {
	return &Scheduler{
		heap:   cache.NewTickHeap[func()](),
		logger: logging.WithComponent("scheduler"),
	}
}

// Now returns the tick the scheduler last advanced to.
func (s *Scheduler) Now() uint64 { return s.now }

// After schedules fn to run once the scheduler reaches Now()+ticks. A zero
// delay runs on the next Advance.
func (s *Scheduler) After(ticks uint64, fn func()) *Task {
	s.nextID++
	key := strconv.FormatUint(s.nextID, 10)
	due := s.now + ticks
	s.heap.Push(key, fn, due)
	return &Task{s: s, key: key, due: due}
}

// Advance moves the scheduler to tick and runs every task due at or before
// it, earliest first. Tasks scheduled by running tasks with zero delay run
// in the same call. A panicking task is logged and skipped. Returns the
// number of tasks run.
func (s *Scheduler) Advance(tick uint64) int {
	if tick > s.now {
		s.now = tick
	}

	ran := 0
	for {
		due := s.heap.PopDue(s.now)
		if len(due) == 0 {
			return ran
		}
		for _, e := range due {
			s.run(e.Key, e.Value)
			ran++
		}
	}
}

// Pending returns the number of tasks not yet run.
func (s *Scheduler) Pending() int {
	return s.heap.Len()
}

func (s *Scheduler) run(key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordPanic("", "task")
			s.logger.Error().
				Str("task", key).
				Uint64("tick", s.now).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("scheduled task panicked")
		}
	}()
	fn()
}
