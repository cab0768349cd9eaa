// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

func TestRelay_ForwardsReports(t *testing.T) {
	hub := startHub(t)
	client := createTestClient(hub, 8)
	registerClient(t, hub, client)

	pubsub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	relay := NewRelay(hub, pubsub, "guardian.reports")
	go func() { errCh <- relay.Run(ctx) }()

	rec := report.Record{ID: "r1", Entity: "steve", Violation: true, Severity: 2}
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := pubsub.Publish("guardian.reports",
		message.NewMessage(watermill.NewUUID(), []byte("not json")),
		message.NewMessage(watermill.NewUUID(), payload),
	); err != nil {
		t.Fatal(err)
	}

	msg := expectMessage(t, client)
	if msg.Type != MessageTypeReport || msg.Entity != "steve" {
		t.Errorf("message = %+v", msg)
	}
	got, ok := msg.Data.(report.Record)
	if !ok || got.ID != "r1" {
		t.Errorf("data = %#v", msg.Data)
	}
	expectNoMessage(t, client)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, errors.New("unavailable")
}

func (failingSubscriber) Close() error { return nil }

func TestRelay_SubscribeError(t *testing.T) {
	relay := NewRelay(NewHub(), failingSubscriber{}, "guardian.reports")
	if err := relay.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want subscribe error")
	}
}
