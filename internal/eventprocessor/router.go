// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/cache"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
)

// Handler names.
const (
	HandlerState   = "entity_state"
	HandlerRemove  = "entity_remove"
	HandlerTrigger = "entity_trigger"
)

// Sink accepts decoded host input. pipeline.Pipeline implements it.
type Sink interface {
	UpdateState(snap entity.Snapshot) error
	RemoveEntity(id entity.ID) error
	Trigger(ev entity.Event) error
}

// Router consumes host input from the bus and hands it to a Sink.
// Malformed messages are acknowledged and counted; messages the sink
// refuses are retried.
type Router struct {
	router *message.Router
	cfg    BusConfig
	sink   Sink
	dedup  *cache.LRUCache[struct{}]
	logger watermill.LoggerAdapter
}

// NewRouter registers the state, remove and trigger handlers on bus.
func NewRouter(bus *Bus, sink Sink, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg := bus.Config()

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.Router.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router: wmRouter,
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}

	wmRouter.AddMiddleware(middleware.Recoverer)
	if cfg.Router.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.Router.RetryMaxRetries,
			InitialInterval: cfg.Router.RetryInitialInterval,
			MaxInterval:     cfg.Router.RetryMaxInterval,
			Multiplier:      2.0,
			Logger:          logger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}
	if cfg.Router.DeduplicationTTL > 0 {
		r.dedup = cache.NewLRUCache[struct{}](10000, cfg.Router.DeduplicationTTL)
	}

	wmRouter.AddConsumerHandler(HandlerState, cfg.StateTopic, bus.Subscriber, r.handleState)
	wmRouter.AddConsumerHandler(HandlerRemove, cfg.RemoveTopic, bus.Subscriber, r.handleRemove)
	wmRouter.AddConsumerHandler(HandlerTrigger, cfg.TriggerTopic, bus.Subscriber, r.handleTrigger)

	return r, nil
}

func (r *Router) reject(topic, reason string, msg *message.Message, err error) {
	metrics.RecordBusRejected(topic, reason)
	r.logger.Debug("message rejected", watermill.LogFields{
		"topic":      topic,
		"reason":     reason,
		"message_id": msg.UUID,
		"error":      err,
	})
}

func (r *Router) handleState(msg *message.Message) error {
	topic := r.cfg.StateTopic
	metrics.RecordBusConsumed(topic)

	snap, err := DecodeSnapshot(msg)
	if err != nil {
		r.reject(topic, "decode", msg, err)
		return nil
	}
	return r.sink.UpdateState(snap)
}

func (r *Router) handleRemove(msg *message.Message) error {
	topic := r.cfg.RemoveTopic
	metrics.RecordBusConsumed(topic)

	id, err := DecodeRemove(msg)
	if err != nil {
		r.reject(topic, "decode", msg, err)
		return nil
	}
	return r.sink.RemoveEntity(id)
}

func (r *Router) handleTrigger(msg *message.Message) error {
	topic := r.cfg.TriggerTopic
	metrics.RecordBusConsumed(topic)

	ev, err := DecodeEvent(msg)
	if err != nil {
		r.reject(topic, "decode", msg, err)
		return nil
	}
	if r.dedup != nil && r.dedup.Contains(ev.ID) {
		r.reject(topic, "duplicate", msg, nil)
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := r.sink.Trigger(ev); err != nil {
		return err
	}
	if r.dedup != nil {
		r.dedup.Add(ev.ID, struct{}{})
	}
	return nil
}

// Run blocks until ctx is canceled or the router is closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once every handler subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to the close timeout for handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
