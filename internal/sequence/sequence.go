// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package sequence

import (
	"fmt"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

// State is the lifecycle position of a Sequence.
type State int

const (
	Dormant State = iota
	Observing
	Waiting
	Evaluating
	Finished
	Expired
	Cancelled
)

var stateNames = [...]string{
	Dormant:    "dormant",
	Observing:  "observing",
	Waiting:    "waiting",
	Evaluating: "evaluating",
	Finished:   "finished",
	Expired:    "expired",
	Cancelled:  "cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Finished || s == Expired || s == Cancelled
}

// Sequence correlates one trigger event with a delayed re-observation of
// one entity for one check. A sequence is never reused.
type Sequence struct {
	blueprint    *Blueprint
	entity       entity.ID
	state        State
	registry     *capture.Registry
	summary      *report.Summary
	trigger      entity.Event
	lastAction   time.Time
	observedAt   time.Time
	countdown    uint64
	createdTick  uint64
	tickDuration time.Duration
	err          error
}

// New creates a dormant sequence for id. createdTick is the tick the
// sequence was registered in; tickDuration converts the blueprint's expiry
// into wall time.
func New(bp *Blueprint, id entity.ID, createdTick uint64, tickDuration time.Duration) *Sequence {
	return &Sequence{
		blueprint:    bp,
		entity:       id,
		state:        Dormant,
		registry:     capture.NewRegistry(bp.Captures...),
		summary:      report.NewSummary(),
		createdTick:  createdTick,
		tickDuration: tickDuration,
	}
}

func (s *Sequence) Entity() entity.ID             { return s.entity }
func (s *Sequence) Blueprint() *Blueprint         { return s.blueprint }
func (s *Sequence) State() State                  { return s.state }
func (s *Sequence) Summary() *report.Summary      { return s.summary }
func (s *Sequence) Container() *capture.Container { return s.registry.Container() }
func (s *Sequence) Trigger() entity.Event         { return s.trigger }
func (s *Sequence) CreatedTick() uint64           { return s.createdTick }

// Countdown returns the sampling ticks left before evaluation.
func (s *Sequence) Countdown() uint64 { return s.countdown }

// Err returns why the sequence ended without a report, if it did.
func (s *Sequence) Err() error { return s.err }

// Observe advances a dormant sequence whose trigger type and entity match
// ev. It seeds the captures from snap, records the last-action time and
// arms the countdown. It reports whether the sequence advanced.
//
// The last-action time is the event timestamp, clamped to now: a host
// clock running ahead never shrinks the measured window below zero.
func (s *Sequence) Observe(ev entity.Event, snap entity.Snapshot, now time.Time) bool {
	if s.state != Dormant || ev.Type != s.blueprint.Trigger || ev.Entity != s.entity {
		return false
	}

	s.state = Observing
	s.trigger = ev
	s.lastAction = ev.Timestamp
	if s.lastAction.IsZero() || s.lastAction.After(now) {
		s.lastAction = now
	}
	s.observedAt = now
	s.registry.Start(snap)

	s.countdown = s.blueprint.Delay
	s.state = Waiting
	if s.countdown == 0 {
		s.state = Evaluating
	}
	return true
}

// Tick runs one step of the state machine: expiry check, then either one
// capture sample or the evaluation. Panics inside captures or the condition
// cancel the sequence and are returned as ErrPanic. Evaluation aborts are
// returned as the condition's error with the sequence Finished.
func (s *Sequence) Tick(now time.Time, tick uint64, snap entity.Snapshot) (err error) {
	if s.state != Waiting && s.state != Evaluating {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.state = Cancelled
			s.err = fmt.Errorf("%w: %v", ErrPanic, r)
			err = s.err
		}
	}()

	if s.expired(now) {
		s.state = Expired
		return nil
	}

	if s.state == Waiting {
		s.registry.Update(snap)
		s.countdown--
		if s.countdown == 0 {
			s.state = Evaluating
		}
		return nil
	}

	return s.evaluate(now, tick, snap)
}

func (s *Sequence) evaluate(now time.Time, tick uint64, snap entity.Snapshot) error {
	r, err := s.blueprint.Condition(Evaluation{
		Snapshot:     snap,
		Container:    s.registry.Container(),
		Summary:      s.summary,
		Trigger:      s.trigger,
		LastAction:   s.lastAction,
		Now:          now,
		Tick:         tick,
		TickDuration: s.tickDuration,
	})

	s.state = Finished
	if err != nil {
		s.err = err
		return err
	}
	if r != nil {
		s.summary.SetReport(r.WithProvenance(s.entity, s.blueprint.DetectionID, s.blueprint.CheckID))
	}
	return nil
}

func (s *Sequence) expired(now time.Time) bool {
	if s.blueprint.Expire == 0 || s.tickDuration <= 0 {
		return false
	}
	limit := time.Duration(s.blueprint.Expire) * s.tickDuration
	return now.Sub(s.observedAt) > limit
}

// Suppress force-finishes an in-flight sequence without a report.
func (s *Sequence) Suppress() {
	if s.state.Terminal() {
		return
	}
	s.state = Finished
	s.err = ErrSuppressed
}

// fail cancels the sequence with err.
func (s *Sequence) fail(err error) {
	s.state = Cancelled
	s.err = err
}

// Cancel ends the sequence because its entity can no longer be resolved.
func (s *Sequence) Cancel() {
	if s.state.Terminal() {
		return
	}
	s.state = Cancelled
}
