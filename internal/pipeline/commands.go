// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

// ErrQueueFull is returned when the inbound queue cannot accept a command.
var ErrQueueFull = errors.New("pipeline inbound queue full")

type commandKind int

const (
	cmdState commandKind = iota
	cmdRemove
	cmdTrigger
	cmdBypass
	cmdCloseBypass
	cmdConfigure
	cmdEnable
)

func (k commandKind) String() string {
	switch k {
	case cmdState:
		return "state"
	case cmdRemove:
		return "remove"
	case cmdTrigger:
		return "trigger"
	case cmdBypass:
		return "bypass"
	case cmdCloseBypass:
		return "close_bypass"
	case cmdConfigure:
		return "configure"
	case cmdEnable:
		return "enable"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

type result struct {
	ticket bypass.Info
	n      int
	err    error
}

type command struct {
	kind      commandKind
	snapshot  entity.Snapshot
	entity    entity.ID
	event     entity.Event
	bypass    BypassRequest
	detection string
	raw       json.RawMessage
	enabled   bool

	// reply, when set, receives exactly one result.
	reply chan result
}

// BypassRequest asks for a timed ticket.
type BypassRequest struct {
	Entity entity.ID `json:"entity" validate:"required"`
	Owner  string    `json:"owner" validate:"required,max=64"`

	// Triggers default to movement when empty.
	Triggers []entity.EventType `json:"triggers,omitempty"`

	// Check restricts the ticket to one check. Empty blocks every check of
	// the listed triggers.
	Check string `json:"check,omitempty"`

	// Ticks is the ticket lifetime.
	Ticks uint64 `json:"ticks" validate:"gt=0,lte=72000"`
}

func (r BypassRequest) blocks() []bypass.Block {
	triggers := r.Triggers
	if len(triggers) == 0 {
		triggers = []entity.EventType{entity.EventMove}
	}
	out := make([]bypass.Block, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, bypass.Block{Trigger: t, Check: r.Check})
	}
	return out
}

func (p *Pipeline) enqueue(cmd command) error {
	select {
	case p.inbound <- cmd:
		metrics.InboundQueueDepth.Set(float64(len(p.inbound)))
		return nil
	default:
		p.dropped.Add(1)
		metrics.RecordInboundDropped(cmd.kind.String())
		return ErrQueueFull
	}
}

// call enqueues cmd and waits for the pipeline to process it.
func (p *Pipeline) call(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	if err := p.enqueue(cmd); err != nil {
		return result{}, err
	}
	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// UpdateState records an entity's latest snapshot. It is applied at the
// start of the next tick, before any trigger.
func (p *Pipeline) UpdateState(snap entity.Snapshot) error {
	if verr := validation.ValidateStruct(&snap); verr != nil {
		return verr
	}
	return p.enqueue(command{kind: cmdState, snapshot: snap})
}

// RemoveEntity forgets an entity. Its live sequences are cancelled on the
// next tick.
func (p *Pipeline) RemoveEntity(id entity.ID) error {
	return p.enqueue(command{kind: cmdRemove, entity: id})
}

// Trigger delivers a trigger event. It is dispatched on the next tick.
func (p *Pipeline) Trigger(ev entity.Event) error {
	if ev.Entity == "" || ev.Type == "" {
		return errors.New("trigger without entity or type")
	}
	return p.enqueue(command{kind: cmdTrigger, event: ev})
}

// RequestBypass opens a timed ticket on the next tick and returns it.
func (p *Pipeline) RequestBypass(ctx context.Context, req BypassRequest) (bypass.Info, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return bypass.Info{}, verr
	}
	res, err := p.call(ctx, command{kind: cmdBypass, bypass: req})
	return res.ticket, err
}

// CloseBypass closes every open ticket of an entity and returns how many
// were closed.
func (p *Pipeline) CloseBypass(ctx context.Context, id entity.ID) (int, error) {
	res, err := p.call(ctx, command{kind: cmdCloseBypass, entity: id})
	return res.n, err
}

// Configure applies a detection configuration section between ticks.
func (p *Pipeline) Configure(ctx context.Context, detectionID string, raw json.RawMessage) error {
	_, err := p.call(ctx, command{kind: cmdConfigure, detection: detectionID, raw: raw})
	return err
}

// SetEnabled enables or disables a detection between ticks.
func (p *Pipeline) SetEnabled(ctx context.Context, detectionID string, enabled bool) error {
	_, err := p.call(ctx, command{kind: cmdEnable, detection: detectionID, enabled: enabled})
	return err
}

// drain applies every command queued before the call. State updates and
// removals are applied first so triggers of the same tick see them.
func (p *Pipeline) drain(tick uint64) {
	n := len(p.inbound)
	if n == 0 {
		return
	}
	batch := make([]command, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, <-p.inbound)
	}
	metrics.InboundQueueDepth.Set(float64(len(p.inbound)))

	for _, cmd := range batch {
		switch cmd.kind {
		case cmdState:
			p.table.Update(cmd.snapshot, tick)
		case cmdRemove:
			p.table.Remove(cmd.entity)
		}
	}
	for _, cmd := range batch {
		switch cmd.kind {
		case cmdState, cmdRemove:
		case cmdTrigger:
			p.dispatch(cmd.event)
		case cmdBypass:
			t := p.tickets.RequestTimed(cmd.bypass.Entity, cmd.bypass.Owner, cmd.bypass.Ticks, cmd.bypass.blocks()...)
			cmd.reply <- result{ticket: t.Info()}
		case cmdCloseBypass:
			cmd.reply <- result{n: p.tickets.CloseAll(cmd.entity)}
		case cmdConfigure:
			cmd.reply <- result{err: p.registry.Configure(cmd.detection, cmd.raw)}
		case cmdEnable:
			cmd.reply <- result{err: p.registry.SetEnabled(cmd.detection, cmd.enabled)}
		}
	}
}

// dispatch opens the teleport bypass when needed and hands the event to
// the sequence manager.
func (p *Pipeline) dispatch(ev entity.Event) {
	p.triggers.Add(1)
	if ev.Type == entity.EventTeleport && p.cfg.TeleportTicks > 0 {
		p.tickets.RequestTimedTicket(ev.Entity, []entity.EventType{entity.EventMove}, TeleportOwner, p.cfg.TeleportTicks)
	}
	if n := p.manager.DispatchTrigger(ev); n > 0 {
		p.started.Add(uint64(n))
	}
}

// Status is a point-in-time view of the pipeline, refreshed every tick.
type Status struct {
	Tick          uint64         `json:"tick"`
	Running       bool           `json:"running"`
	Entities      int            `json:"entities"`
	LiveSequences int            `json:"live_sequences"`
	ByState       map[string]int `json:"by_state"`
	OpenTickets   int            `json:"open_tickets"`
	Pending       int            `json:"pending_tasks"`
	QueueDepth    int            `json:"queue_depth"`
	LastTick      time.Duration  `json:"last_tick_ns"`

	TicksProcessed   uint64 `json:"ticks_processed"`
	TriggersReceived uint64 `json:"triggers_received"`
	SequencesStarted uint64 `json:"sequences_started"`
	Reports          uint64 `json:"reports"`
	Violations       uint64 `json:"violations"`
	Penalized        uint64 `json:"penalized"`
	Vetoed           uint64 `json:"vetoed"`
	Dropped          uint64 `json:"dropped"`

	UpdatedAt time.Time `json:"updated_at"`
}

// publishStatus snapshots the pipeline-owned state. Only the pipeline
// goroutine calls it.
func (p *Pipeline) publishStatus() {
	st := p.manager.Stats()
	p.status.Store(&Status{
		Tick:          st.Tick,
		Entities:      p.table.Len(),
		LiveSequences: st.Live,
		ByState:       st.ByState,
		OpenTickets:   p.tickets.Len(),
		Pending:       p.sched.Pending(),
		UpdatedAt:     time.Now(),
	})
}

// Status returns the latest status. It is safe for concurrent use.
func (p *Pipeline) Status() Status {
	st := *p.status.Load()
	st.Running = p.running.Load()
	st.QueueDepth = len(p.inbound)
	st.LastTick = time.Duration(p.lastTickNs.Load())
	st.TicksProcessed = p.ticks.Load()
	st.TriggersReceived = p.triggers.Load()
	st.SequencesStarted = p.started.Load()
	st.Reports = p.reports.Load()
	st.Violations = p.violations.Load()
	st.Penalized = p.penalized.Load()
	st.Vetoed = p.vetoed.Load()
	st.Dropped = p.dropped.Load()
	return st
}

var (
	_ sequence.Source  = (*detection.Registry)(nil)
	_ entity.Provider  = (*entity.Table)(nil)
	_ sequence.Blocker = (*bypass.Service)(nil)
)
