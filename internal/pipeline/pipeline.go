// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/scheduler"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// ErrAlreadyRunning is returned by RunWithContext when another loop is
// already driving the pipeline.
var ErrAlreadyRunning = errors.New("pipeline already running")

// TeleportOwner owns the tickets opened for teleports.
const TeleportOwner = "teleport"

// Config configures the tick loop.
type Config struct {
	// TickRate is the interval between ticks and the nominal tick duration
	// used by expiry and the speed allowance.
	TickRate time.Duration `koanf:"tick_rate" json:"tick_rate" validate:"gt=0"`

	// QueueSize bounds the inbound command queue.
	QueueSize int `koanf:"queue_size" json:"queue_size" validate:"gt=0"`

	// TeleportTicks is the length of the movement bypass opened for every
	// teleport. Zero disables it.
	TeleportTicks uint64 `koanf:"teleport_ticks" json:"teleport_ticks"`

	// CleanupInterval runs the registered cleaners every this many ticks.
	// Zero disables cleanup.
	CleanupInterval uint64 `koanf:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultConfig returns a 20 tick per second pipeline.
func DefaultConfig() Config {
	return Config{
		TickRate:        sequence.DefaultTickDuration,
		QueueSize:       4096,
		TeleportTicks:   55,
		CleanupInterval: 1200,
	}
}

// Cleaner evicts idle per-entity state.
type Cleaner interface {
	Cleanup(tick uint64) int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the wall clock used for expiry and allowances.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithCleaners registers cleaners run every CleanupInterval ticks.
func WithCleaners(cleaners ...Cleaner) Option {
	return func(p *Pipeline) { p.cleaners = append(p.cleaners, cleaners...) }
}

// WithRegistry uses an existing detection registry.
func WithRegistry(r *detection.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// Pipeline is the top-level application object. It owns the snapshot
// table, the detection registry, the bypass tickets and the sequence
// manager. Only the goroutine calling Step or RunWithContext touches them;
// every other goroutine goes through the inbound queue.
type Pipeline struct {
	cfg Config

	table    *entity.Table
	registry *detection.Registry
	sched    *scheduler.Scheduler
	tickets  *bypass.Service
	manager  *sequence.Manager
	cleaners []Cleaner
	now      func() time.Time

	inbound chan command
	running atomic.Bool
	status  atomic.Pointer[Status]

	// Counters, readable from any goroutine.
	ticks      atomic.Uint64
	triggers   atomic.Uint64
	started    atomic.Uint64
	reports    atomic.Uint64
	violations atomic.Uint64
	penalized  atomic.Uint64
	vetoed     atomic.Uint64
	dropped    atomic.Uint64
	lastTickNs atomic.Int64

	logger zerolog.Logger
}

// New creates a pipeline with an empty registry unless WithRegistry is
// given.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if verr := validation.ValidateStruct(&cfg); verr != nil {
		return nil, fmt.Errorf("pipeline config: %w", verr)
	}

	p := &Pipeline{
		cfg:     cfg,
		table:   entity.NewTable(),
		sched:   scheduler.New(),
		now:     time.Now,
		inbound: make(chan command, cfg.QueueSize),
		logger:  logging.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = detection.NewRegistry()
	}
	p.tickets = bypass.NewService(p.sched)
	p.manager = sequence.NewManager(p.registry, p.table, p.tickets, p.sched, sequence.Options{
		TickDuration: cfg.TickRate,
		OnComplete:   p.complete,
		Now:          p.now,
	})
	p.publishStatus()
	return p, nil
}

// Registry returns the detection registry. It is safe for concurrent use.
func (p *Pipeline) Registry() *detection.Registry { return p.registry }

// Detections lists the registered detections. It is safe for concurrent use.
func (p *Pipeline) Detections() []detection.Info { return p.registry.List() }

// Tickets returns the bypass ticket service. Requesting timed tickets
// schedules work on the tick scheduler, so callers outside the pipeline
// goroutine must use RequestBypass instead.
func (p *Pipeline) Tickets() *bypass.Service { return p.tickets }

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// complete runs the owning detection's stage cycle for a finished sequence.
func (p *Pipeline) complete(s *sequence.Sequence) {
	p.reports.Add(1)
	r, ok := s.Summary().Report()
	if !ok {
		return
	}
	if r.Violation() {
		p.violations.Add(1)
	}

	out := p.registry.Complete(s, p.manager.Tick())
	if out.Vetoed {
		p.vetoed.Add(1)
	}
	if len(out.Penalties) > 0 {
		p.penalized.Add(1)
	}
}

// Step runs one tick: the inbound queue is drained (state updates first,
// then everything else in arrival order), triggers are dispatched, every
// live sequence advances and the scheduler runs the tasks due next tick.
func (p *Pipeline) Step() {
	start := time.Now()
	tick := p.manager.Tick()

	p.drain(tick)
	p.manager.Advance()

	if p.cfg.CleanupInterval > 0 && tick > 0 && tick%p.cfg.CleanupInterval == 0 {
		for _, c := range p.cleaners {
			c.Cleanup(tick)
		}
	}

	elapsed := time.Since(start)
	p.ticks.Add(1)
	p.lastTickNs.Store(int64(elapsed))
	metrics.RecordTick(tick, elapsed, p.cfg.TickRate)
	p.publishStatus()
}

// RunWithContext drives Step from a ticker until ctx is canceled. Live
// sequences are dropped on shutdown.
func (p *Pipeline) RunWithContext(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.logger.Info().
		Str("tick_rate", p.cfg.TickRate.String()).
		Int("detections", len(p.registry.List())).
		Msg("pipeline started")

	ticker := time.NewTicker(p.cfg.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.manager.Clear()
			p.publishStatus()
			p.logger.Info().Uint64("tick", p.manager.Tick()).Msg("pipeline shutting down")
			return ctx.Err()
		case <-ticker.C:
			p.Step()
		}
	}
}

// Running reports whether RunWithContext is driving the pipeline.
func (p *Pipeline) Running() bool { return p.running.Load() }
