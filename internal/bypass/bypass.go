// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package bypass issues suppression tickets that keep sequences from
// starting for an entity and force report-free termination of in-flight
// ones. Tickets exist for host transitions, such as a teleport, that raw
// displacement math cannot tell apart from cheating.
//
// A ticket blocks (trigger, check) pairs. An empty check blocks every check
// listening for the trigger. Tickets close explicitly or after a number of
// ticks and are never reopened.
package bypass

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/scheduler"
)

// Block is one blocked (trigger, check) pair.
type Block struct {
	Trigger entity.EventType `json:"trigger"`
	Check   string           `json:"check,omitempty"`
}

func (b Block) matches(trigger entity.EventType, check string) bool {
	return b.Trigger == trigger && (b.Check == "" || b.Check == check)
}

// Triggers blocks every check for each of the given trigger types.
func Triggers(triggers ...entity.EventType) []Block {
	blocks := make([]Block, len(triggers))
	for i, t := range triggers {
		blocks[i] = Block{Trigger: t}
	}
	return blocks
}

// Ticket is an open suppression for one entity.
type Ticket struct {
	id       string
	entity   entity.ID
	owner    string
	blocks   []Block
	issuedAt time.Time
	closesAt uint64

	svc    *Service
	closed bool
	task   *scheduler.Task
}

func (t *Ticket) ID() string          { return t.id }
func (t *Ticket) Entity() entity.ID   { return t.entity }
func (t *Ticket) Owner() string       { return t.owner }
func (t *Ticket) IssuedAt() time.Time { return t.issuedAt }

// Blocks returns a copy of the blocked pairs.
func (t *Ticket) Blocks() []Block {
	out := make([]Block, len(t.blocks))
	copy(out, t.blocks)
	return out
}

// ClosesAt returns the tick a timed ticket closes at, or 0.
func (t *Ticket) ClosesAt() uint64 { return t.closesAt }

// Closed reports whether the ticket has been closed.
func (t *Ticket) Closed() bool {
	t.svc.mu.RLock()
	defer t.svc.mu.RUnlock()
	return t.closed
}

// Close releases the ticket. Closing an already closed ticket does nothing.
func (t *Ticket) Close() {
	t.svc.close(t)
}

// Info is a read-only view of an open ticket.
type Info struct {
	ID       string    `json:"id"`
	Entity   entity.ID `json:"entity"`
	Owner    string    `json:"owner"`
	Blocks   []Block   `json:"blocks"`
	IssuedAt time.Time `json:"issued_at"`
	ClosesAt uint64    `json:"closes_at,omitempty"`
}

// Service tracks open tickets per entity.
type Service struct {
	mu      sync.RWMutex
	sched   *scheduler.Scheduler
	tickets map[entity.ID][]*Ticket
	logger  zerolog.Logger
}

// NewService creates a ticket service. sched drives timed tickets.
func NewService(sched *scheduler.Scheduler) *Service {
	return &Service{
		sched:   sched,
		tickets: make(map[entity.ID][]*Ticket),
		logger:  logging.WithComponent("bypass"),
	}
}

// RequestTicket opens a ticket blocking every check for the given trigger
// types until it is closed.
func (s *Service) RequestTicket(id entity.ID, triggers []entity.EventType, owner string) *Ticket {
	return s.Request(id, owner, Triggers(triggers...)...)
}

// RequestTimedTicket opens a ticket that closes itself after delayTicks.
func (s *Service) RequestTimedTicket(id entity.ID, triggers []entity.EventType, owner string, delayTicks uint64) *Ticket {
	return s.request(id, owner, Triggers(triggers...), delayTicks, true)
}

// Request opens a ticket for explicit (trigger, check) pairs.
func (s *Service) Request(id entity.ID, owner string, blocks ...Block) *Ticket {
	return s.request(id, owner, blocks, 0, false)
}

// RequestTimed opens a timed ticket for explicit (trigger, check) pairs.
func (s *Service) RequestTimed(id entity.ID, owner string, delayTicks uint64, blocks ...Block) *Ticket {
	return s.request(id, owner, blocks, delayTicks, true)
}

func (s *Service) request(id entity.ID, owner string, blocks []Block, delay uint64, timed bool) *Ticket {
	t := &Ticket{
		id:       uuid.NewString(),
		entity:   id,
		owner:    owner,
		blocks:   append([]Block(nil), blocks...),
		issuedAt: time.Now(),
		svc:      s,
	}

	s.mu.Lock()
	s.tickets[id] = append(s.tickets[id], t)
	s.mu.Unlock()

	if timed {
		t.task = s.sched.After(delay, t.Close)
		t.closesAt = t.task.Due()
	}

	metrics.RecordTicketIssued(owner, timed)
	s.logger.Debug().
		Str("ticket", t.id).
		Str("entity", string(id)).
		Str("owner", owner).
		Uint64("closes_at", t.closesAt).
		Msg("bypass ticket opened")
	return t
}

func (s *Service) close(t *Ticket) {
	s.mu.Lock()
	if t.closed {
		s.mu.Unlock()
		return
	}
	t.closed = true

	open := s.tickets[t.entity]
	for i, o := range open {
		if o == t {
			open = append(open[:i], open[i+1:]...)
			break
		}
	}
	if len(open) == 0 {
		delete(s.tickets, t.entity)
	} else {
		s.tickets[t.entity] = open
	}
	s.mu.Unlock()

	if t.task != nil {
		t.task.Cancel()
	}
	metrics.RecordTicketClosed()
	s.logger.Debug().Str("ticket", t.id).Str("entity", string(t.entity)).Msg("bypass ticket closed")
}

// Blocks reports whether an open ticket blocks check for trigger on id.
func (s *Service) Blocks(id entity.ID, trigger entity.EventType, check string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets[id] {
		for _, b := range t.blocks {
			if b.matches(trigger, check) {
				return true
			}
		}
	}
	return false
}

// Open returns the open tickets for id.
func (s *Service) Open(id entity.ID) []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.tickets[id]))
	for _, t := range s.tickets[id] {
		out = append(out, t.Info())
	}
	return out
}

// All returns every open ticket ordered by entity.
func (s *Service) All() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Info
	for _, list := range s.tickets {
		for _, t := range list {
			out = append(out, t.Info())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

// Len returns the number of open tickets.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.tickets {
		n += len(list)
	}
	return n
}

// CloseAll closes every open ticket for id and returns how many closed.
func (s *Service) CloseAll(id entity.ID) int {
	s.mu.RLock()
	open := append([]*Ticket(nil), s.tickets[id]...)
	s.mu.RUnlock()
	for _, t := range open {
		t.Close()
	}
	return len(open)
}

// Info returns the serializable form of the ticket.
func (t *Ticket) Info() Info {
	return Info{
		ID:       t.id,
		Entity:   t.entity,
		Owner:    t.owner,
		Blocks:   t.Blocks(),
		IssuedAt: t.issuedAt,
		ClosesAt: t.closesAt,
	}
}
