// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
)

var errBusy = errors.New("busy")

type fakeSink struct {
	mu           sync.Mutex
	failTriggers int

	states  chan entity.Snapshot
	removed chan entity.ID
	events  chan entity.Event
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		states:  make(chan entity.Snapshot, 16),
		removed: make(chan entity.ID, 16),
		events:  make(chan entity.Event, 16),
	}
}

func (s *fakeSink) UpdateState(snap entity.Snapshot) error {
	s.states <- snap
	return nil
}

func (s *fakeSink) RemoveEntity(id entity.ID) error {
	s.removed <- id
	return nil
}

func (s *fakeSink) Trigger(ev entity.Event) error {
	s.mu.Lock()
	if s.failTriggers > 0 {
		s.failTriggers--
		s.mu.Unlock()
		return errBusy
	}
	s.mu.Unlock()
	s.events <- ev
	return nil
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatal("timed out waiting for delivery")
		return zero
	}
}

// startRouter runs a router over an in-process bus until the test ends.
func startRouter(t *testing.T, sink Sink) *Bus {
	t.Helper()
	cfg := DefaultBusConfig()
	cfg.Router.RetryInitialInterval = time.Millisecond
	cfg.Router.RetryMaxInterval = 5 * time.Millisecond

	bus, err := NewBus(cfg, nil)
	if err != nil {
		t.Fatalf("NewBus() = %v", err)
	}
	r, err := NewRouter(bus, sink, nil)
	if err != nil {
		t.Fatalf("NewRouter() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	select {
	case <-r.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.Close()
	})
	return bus
}

func publish(t *testing.T, bus *Bus, topic string, msg *message.Message) {
	t.Helper()
	if err := bus.Publisher.Publish(topic, msg); err != nil {
		t.Fatalf("Publish(%s) = %v", topic, err)
	}
}

func publishJSON(t *testing.T, bus *Bus, topic string, v any) {
	t.Helper()
	msg, err := NewJSONMessage("test", "", v)
	if err != nil {
		t.Fatal(err)
	}
	publish(t, bus, topic, msg)
}

func TestNewBus_UnknownDriver(t *testing.T) {
	cfg := DefaultBusConfig()
	cfg.Driver = "kafka"
	if _, err := NewBus(cfg, nil); err == nil {
		t.Error("NewBus() accepted an unknown driver")
	}
}

func TestRouter_DeliversHostInput(t *testing.T) {
	sink := newFakeSink()
	bus := startRouter(t, sink)

	publishJSON(t, bus, TopicState, entity.Snapshot{ID: "e1", Position: entity.Vector3{X: 1, Y: 64, Z: 2}, OnGround: true})
	snap := receive(t, sink.states)
	if snap.ID != "e1" || snap.Position.Z != 2 || !snap.OnGround {
		t.Errorf("snapshot = %+v", snap)
	}

	publishJSON(t, bus, TopicTrigger, entity.Event{ID: "ev1", Type: entity.EventMove, Entity: "e1"})
	ev := receive(t, sink.events)
	if ev.ID != "ev1" || ev.Type != entity.EventMove {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("event timestamp not filled in")
	}

	publishJSON(t, bus, TopicRemove, RemoveMessage{Entity: "e1"})
	if id := receive(t, sink.removed); id != "e1" {
		t.Errorf("removed = %q, want e1", id)
	}
}

func TestRouter_RejectsMalformed(t *testing.T) {
	sink := newFakeSink()
	bus := startRouter(t, sink)
	rejected := metrics.BusMessagesRejected.WithLabelValues(TopicTrigger, "decode")
	before := testutil.ToFloat64(rejected)

	publish(t, bus, TopicTrigger, message.NewMessage("bad-1", []byte("{not json")))
	publishJSON(t, bus, TopicTrigger, entity.Event{Entity: "e1"})
	publishJSON(t, bus, TopicTrigger, entity.Event{ID: "ok", Type: entity.EventMove, Entity: "e1"})

	if ev := receive(t, sink.events); ev.ID != "ok" {
		t.Errorf("first delivered event = %q, want ok", ev.ID)
	}
	if got := testutil.ToFloat64(rejected) - before; got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
}

func TestRouter_DeduplicatesTriggers(t *testing.T) {
	sink := newFakeSink()
	bus := startRouter(t, sink)

	ev := entity.Event{ID: "dup", Type: entity.EventMove, Entity: "e1"}
	publishJSON(t, bus, TopicTrigger, ev)
	publishJSON(t, bus, TopicTrigger, ev)
	publishJSON(t, bus, TopicTrigger, entity.Event{ID: "next", Type: entity.EventMove, Entity: "e1"})

	if got := receive(t, sink.events); got.ID != "dup" {
		t.Fatalf("first = %q, want dup", got.ID)
	}
	if got := receive(t, sink.events); got.ID != "next" {
		t.Errorf("second = %q, want next", got.ID)
	}
}

func TestRouter_RetriesRefusedTriggers(t *testing.T) {
	sink := newFakeSink()
	sink.failTriggers = 2
	bus := startRouter(t, sink)

	publishJSON(t, bus, TopicTrigger, entity.Event{ID: "retry", Type: entity.EventMove, Entity: "e1"})
	if got := receive(t, sink.events); got.ID != "retry" {
		t.Errorf("delivered = %q, want retry", got.ID)
	}
}

func TestDecodeEvent_FallsBackToMessageID(t *testing.T) {
	msg, err := NewJSONMessage("trigger", "e1", entity.Event{Type: entity.EventMove, Entity: "e1"})
	if err != nil {
		t.Fatal(err)
	}
	ev, err := DecodeEvent(msg)
	if err != nil {
		t.Fatalf("DecodeEvent() = %v", err)
	}
	if ev.ID != msg.UUID {
		t.Errorf("ID = %q, want message UUID %q", ev.ID, msg.UUID)
	}
	if msg.Metadata.Get(MetadataEntity) != "e1" {
		t.Errorf("entity metadata = %q", msg.Metadata.Get(MetadataEntity))
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		decode func(*message.Message) error
		body   string
	}{
		{"snapshot without id", func(m *message.Message) error { _, err := DecodeSnapshot(m); return err }, `{"position":{"x":1}}`},
		{"event without type", func(m *message.Message) error { _, err := DecodeEvent(m); return err }, `{"entity":"e1"}`},
		{"removal without entity", func(m *message.Message) error { _, err := DecodeRemove(m); return err }, `{}`},
		{"invalid json", func(m *message.Message) error { _, err := DecodeSnapshot(m); return err }, `[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(message.NewMessage("id", []byte(tt.body)))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEmbeddedServer(t *testing.T) {
	srv, err := NewEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() = %v", err)
	}
	if !srv.IsRunning() {
		t.Error("server not running")
	}
	if srv.ClientURL() == "" {
		t.Error("empty client URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
