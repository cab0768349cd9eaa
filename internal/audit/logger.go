// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package audit

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
)

// Config configures the audit trail.
type Config struct {
	// Enabled controls whether operator actions are recorded.
	Enabled bool `koanf:"enabled" json:"enabled"`

	// MaxEvents bounds the in-memory store.
	MaxEvents int `koanf:"max_events" json:"max_events" validate:"gte=0"`

	// BufferSize is the async write queue length.
	BufferSize int `koanf:"buffer_size" json:"buffer_size" validate:"gt=0"`

	// Retention drops events older than this. Zero keeps them until
	// MaxEvents pushes them out.
	Retention       time.Duration `koanf:"retention" json:"retention" validate:"gte=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" json:"cleanup_interval" validate:"gte=0"`
}

// DefaultConfig keeps a week of actions.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxEvents:       10000,
		BufferSize:      256,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// Logger records audit events asynchronously. Run drives the writer.
type Logger struct {
	config  Config
	store   Store
	events  chan *Event
	dropped atomic.Int64
	logger  zerolog.Logger
}

// NewLogger creates a logger writing to store.
func NewLogger(store Store, config Config) *Logger {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	return &Logger{
		config: config,
		store:  store,
		events: make(chan *Event, config.BufferSize),
		logger: logging.WithComponent("audit"),
	}
}

// Log queues event, filling in its ID and timestamp. It never blocks; a
// full queue drops the event.
func (l *Logger) Log(event *Event) {
	if l == nil || !l.config.Enabled {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.events <- event:
	default:
		l.dropped.Add(1)
		l.logger.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("audit buffer full, dropping event")
	}
}

// Run writes queued events and applies retention until ctx is canceled.
// Queued events are written before it returns.
func (l *Logger) Run(ctx context.Context) error {
	var cleanup <-chan time.Time
	if l.config.Retention > 0 && l.config.CleanupInterval > 0 {
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-l.events:
					l.write(event)
				default:
					return ctx.Err()
				}
			}
		case event := <-l.events:
			l.write(event)
		case <-cleanup:
			l.cleanup()
		}
	}
}

func (l *Logger) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		l.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to save audit event")
		return
	}

	e := l.logger.Info()
	if event.Outcome == OutcomeFailure {
		e = l.logger.Warn().Str("error", event.Error)
	}
	e.Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("target", event.Target).
		Str("actor", event.Actor.Type).
		Str("request_id", event.RequestID).
		Msg("audit event")
}

func (l *Logger) cleanup() {
	n, err := l.store.Delete(context.Background(), time.Now().Add(-l.config.Retention))
	if err != nil {
		l.logger.Error().Err(err).Msg("audit cleanup failed")
		return
	}
	if n > 0 {
		l.logger.Info().Int64("count", n).Msg("removed expired audit events")
	}
}

// Query returns matching events, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Dropped returns the number of events lost to a full queue.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// APIActor describes the client of r.
func APIActor(r *http.Request) Actor {
	return Actor{
		Type:      ActorAPI,
		Address:   r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// OutcomeOf maps err to an outcome and error text.
func OutcomeOf(err error) (Outcome, string) {
	if err != nil {
		return OutcomeFailure, err.Error()
	}
	return OutcomeSuccess, ""
}
