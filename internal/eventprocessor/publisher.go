// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

// ErrOutboxFull is returned when the outbox cannot take another message.
var ErrOutboxFull = errors.New("outbox full")

const outboxBreaker = "bus_outbox"

type outgoing struct {
	topic string
	msg   *message.Message
}

// Outbox publishes messages from a buffered queue on its own goroutine so
// callers on the tick loop never wait for the bus. Publishing goes through
// a circuit breaker; messages rejected while it is open are dropped.
type Outbox struct {
	pub     message.Publisher
	queue   chan outgoing
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  watermill.LoggerAdapter
}

// NewOutbox creates an outbox holding up to size messages.
func NewOutbox(pub message.Publisher, size int, logger watermill.LoggerAdapter) *Outbox {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if size <= 0 {
		size = 256
	}
	return &Outbox{
		pub:   pub,
		queue: make(chan outgoing, size),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    outboxBreaker,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			},
		}),
		logger: logger,
	}
}

// Send queues msg for topic without blocking.
func (o *Outbox) Send(topic string, msg *message.Message) error {
	select {
	case o.queue <- outgoing{topic: topic, msg: msg}:
		return nil
	default:
		metrics.RecordBusRejected(topic, "outbox_full")
		return ErrOutboxFull
	}
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int { return len(o.queue) }

// Run publishes queued messages until ctx is canceled, then flushes what
// is left.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			o.flush()
			return ctx.Err()
		case out := <-o.queue:
			o.publish(out)
		}
	}
}

func (o *Outbox) flush() {
	for {
		select {
		case out := <-o.queue:
			o.publish(out)
		default:
			return
		}
	}
}

func (o *Outbox) publish(out outgoing) {
	_, err := o.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, o.pub.Publish(out.topic, out.msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(outboxBreaker, "rejected").Inc()
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(outboxBreaker, "failure").Inc()
		o.logger.Error("publish failed", err, watermill.LogFields{
			"topic":      out.topic,
			"message_id": out.msg.UUID,
		})
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(outboxBreaker, "success").Inc()
		metrics.RecordBusPublished(out.topic)
	}
}

// ReportPublisher publishes violation reports.
type ReportPublisher struct {
	outbox *Outbox
	topic  string
}

// NewReportPublisher publishes on topic through outbox.
func NewReportPublisher(outbox *Outbox, topic string) *ReportPublisher {
	return &ReportPublisher{outbox: outbox, topic: topic}
}

// PublishReport queues r as JSON.
func (p *ReportPublisher) PublishReport(r *report.Report) error {
	msg, err := NewJSONMessage("report", r.Entity(), r.Record())
	if err != nil {
		return err
	}
	msg.Metadata.Set("check", r.CheckID())
	return p.outbox.Send(p.topic, msg)
}

// BusMover asks the host to relocate entities by publishing commands.
type BusMover struct {
	outbox *Outbox
	topic  string
	now    func() time.Time
}

// NewBusMover publishes relocation commands on topic through outbox.
func NewBusMover(outbox *Outbox, topic string) *BusMover {
	return &BusMover{outbox: outbox, topic: topic, now: time.Now}
}

// Relocate implements entity.Mover.
func (m *BusMover) Relocate(id entity.ID, pos entity.Vector3) error {
	cmd := RelocateCommand{
		ID:       uuid.NewString(),
		Entity:   id,
		Position: pos,
		Reason:   "reset",
		IssuedAt: m.now().UTC(),
	}
	msg, err := NewJSONMessage("relocate", id, cmd)
	if err != nil {
		return err
	}
	if err := m.outbox.Send(m.topic, msg); err != nil {
		return fmt.Errorf("relocate %s: %w", id, err)
	}
	return nil
}
