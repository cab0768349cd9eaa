// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/scheduler"
)

// Source lists the blueprints of every enabled check listening for a
// trigger type.
type Source interface {
	Blueprints(trigger entity.EventType) []*Blueprint
}

// Blocker reports whether an open bypass ticket blocks a (trigger, check)
// pair for an entity.
type Blocker interface {
	Blocks(id entity.ID, trigger entity.EventType, check string) bool
}

type noBlocker struct{}

func (noBlocker) Blocks(entity.ID, entity.EventType, string) bool { return false }

// CompletionFunc receives every sequence that finished with a report, in
// the tick it finished.
type CompletionFunc func(*Sequence)

// Options tune a Manager. Zero values take defaults.
type Options struct {
	TickDuration time.Duration
	OnComplete   CompletionFunc

	// OverloadLimit throttles overload warnings. Defaults to one every
	// five seconds.
	OverloadLimit *rate.Limiter

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// DefaultTickDuration is the nominal host step.
const DefaultTickDuration = 50 * time.Millisecond

type liveKey struct {
	entity entity.ID
	check  string
}

// Stats is a point-in-time view of the live table.
type Stats struct {
	Tick    uint64         `json:"tick"`
	Live    int            `json:"live"`
	ByState map[string]int `json:"by_state"`
}

// Manager owns every live Sequence. It is not safe for concurrent use: the
// pipeline goroutine is its only caller.
type Manager struct {
	source   Source
	provider entity.Provider
	blocker  Blocker
	sched    *scheduler.Scheduler

	tickDuration time.Duration
	onComplete   CompletionFunc
	overload     *rate.Limiter
	now          func() time.Time

	live  map[liveKey]*Sequence
	order []*Sequence
	tick  uint64

	logger zerolog.Logger
}

// NewManager creates a manager. blocker and sched may be nil.
func NewManager(source Source, provider entity.Provider, blocker Blocker, sched *scheduler.Scheduler, opts Options) *Manager {
	if blocker == nil {
		blocker = noBlocker{}
	}
	if sched == nil {
		sched = scheduler.New()
	}
	if opts.TickDuration <= 0 {
		opts.TickDuration = DefaultTickDuration
	}
	if opts.OverloadLimit == nil {
		opts.OverloadLimit = rate.NewLimiter(rate.Every(5*time.Second), 1)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		source:       source,
		provider:     provider,
		blocker:      blocker,
		sched:        sched,
		tickDuration: opts.TickDuration,
		onComplete:   opts.OnComplete,
		overload:     opts.OverloadLimit,
		now:          opts.Now,
		live:         make(map[liveKey]*Sequence),
		logger:       logging.WithComponent("sequence"),
	}
}

// Tick returns the current tick counter.
func (m *Manager) Tick() uint64 { return m.tick }

// Len returns the number of live sequences.
func (m *Manager) Len() int { return len(m.live) }

// Scheduler returns the scheduler advanced at the end of every tick.
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.sched }

// Get returns the live sequence for (id, check), if any.
func (m *Manager) Get(id entity.ID, check string) (*Sequence, bool) {
	s, ok := m.live[liveKey{id, check}]
	return s, ok
}

// DispatchTrigger starts and observes a sequence for every enabled check
// whose trigger type matches ev. Returns the number of sequences started.
func (m *Manager) DispatchTrigger(ev entity.Event) int {
	if ev.HostOriginated() {
		metrics.RecordTriggerSkipped("host_cause")
		return 0
	}

	blueprints := m.source.Blueprints(ev.Type)
	if len(blueprints) == 0 {
		return 0
	}

	snap, ok := m.provider.Snapshot(ev.Entity)
	if !ok {
		metrics.RecordTriggerSkipped("unresolvable")
		return 0
	}

	now := m.now()
	started := 0
	for _, bp := range blueprints {
		key := liveKey{ev.Entity, bp.CheckID}
		if _, inFlight := m.live[key]; inFlight {
			metrics.RecordTriggerSkipped("in_flight")
			continue
		}
		if m.blocker.Blocks(ev.Entity, ev.Type, bp.CheckID) {
			metrics.RecordTriggerSkipped("bypass")
			metrics.BypassSuppressed.Inc()
			continue
		}

		s, ok := m.start(bp, ev, snap, now)
		if !ok {
			continue
		}
		m.live[key] = s
		m.order = append(m.order, s)
		metrics.RecordSequenceStarted(bp.CheckID)
		started++
	}
	return started
}

// start creates and observes a sequence for bp. A panic in the blueprint
// filter or a capture start hook cancels this sequence only.
func (m *Manager) start(bp *Blueprint, ev entity.Event, snap entity.Snapshot, now time.Time) (s *Sequence, ok bool) {
	s = New(bp, ev.Entity, m.tick, m.tickDuration)
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("%w: %v", ErrPanic, r))
			m.logAbort(s, s.Err())
			metrics.RecordSequenceTerminal(bp.CheckID, s.State().String())
			s, ok = nil, false
		}
	}()

	if bp.Filter != nil && !bp.Filter(snap, ev) {
		metrics.RecordTriggerSkipped("filtered")
		return nil, false
	}
	if !s.Observe(ev, snap, now) {
		return nil, false
	}
	return s, true
}

// Advance runs one tick: every live sequence not started this tick is
// ticked, terminal sequences are swept and reported through the completion
// hook, then the tick counter increments and due scheduler tasks run.
func (m *Manager) Advance() {
	now := m.now()

	for _, s := range m.order {
		if s.State().Terminal() || s.CreatedTick() == m.tick {
			continue
		}
		bp := s.Blueprint()

		if m.blocker.Blocks(s.Entity(), bp.Trigger, bp.CheckID) {
			s.Suppress()
			metrics.BypassSuppressed.Inc()
			continue
		}

		snap, ok := m.provider.Snapshot(s.Entity())
		if !ok {
			s.Cancel()
			continue
		}

		if err := s.Tick(now, m.tick, snap); err != nil {
			m.logAbort(s, err)
		}
	}

	m.sweep()

	m.tick++
	m.sched.Advance(m.tick)
}

func (m *Manager) logAbort(s *Sequence, err error) {
	check := s.Blueprint().CheckID
	reason := AbortReason(err)
	if reason == "panic" {
		metrics.RecordPanic(check, "sequence")
	} else {
		metrics.RecordEvaluationAbort(check, reason)
	}

	log := logging.ForSequence(m.logger, string(s.Entity()), check, m.tick)
	switch {
	case errors.Is(err, ErrPanic):
		log.Error().Err(err).Msg("sequence cancelled after panic")
	case errors.Is(err, ErrWindowOverload):
		if m.overload.Allow() {
			log.Warn().Err(err).Msg("host appears overloaded, evaluation skipped")
		}
	case errors.Is(err, ErrWindowStale):
		log.Debug().Err(err).Msg("stale sampling window, evaluation skipped")
	case errors.Is(err, ErrExcluded):
	default:
		log.Debug().Err(err).Msg("evaluation aborted")
	}
}

func (m *Manager) sweep() {
	kept := m.order[:0]
	for _, s := range m.order {
		if !s.State().Terminal() {
			kept = append(kept, s)
			continue
		}
		delete(m.live, liveKey{s.Entity(), s.Blueprint().CheckID})
		metrics.RecordSequenceTerminal(s.Blueprint().CheckID, s.State().String())

		if s.State() != Finished {
			continue
		}
		r, ok := s.Summary().Report()
		if !ok {
			continue
		}
		metrics.RecordReport(r.CheckID(), r.Violation(), r.Severity())
		if m.onComplete != nil {
			m.onComplete(s)
		}
	}
	for i := len(kept); i < len(m.order); i++ {
		m.order[i] = nil
	}
	m.order = kept
	metrics.ActiveSequences.Set(float64(len(m.live)))
}

// Stats returns counts of live sequences by state.
func (m *Manager) Stats() Stats {
	st := Stats{Tick: m.tick, Live: len(m.live), ByState: make(map[string]int)}
	for _, s := range m.order {
		st.ByState[s.State().String()]++
	}
	return st
}

// Clear drops every live sequence without reporting.
func (m *Manager) Clear() {
	for _, s := range m.order {
		s.Cancel()
	}
	m.sweep()
}
