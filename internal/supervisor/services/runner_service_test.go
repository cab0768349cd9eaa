// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockLoop satisfies ContextRunner, Runner and RecoveryRunner.
type mockLoop struct {
	err   error
	count atomic.Int32
}

func (m *mockLoop) loop(ctx context.Context) error {
	m.count.Add(1)
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockLoop) RunWithContext(ctx context.Context) error { return m.loop(ctx) }
func (m *mockLoop) Run(ctx context.Context) error            { return m.loop(ctx) }
func (m *mockLoop) RunRecovery(ctx context.Context) error    { return m.loop(ctx) }

func TestRunnerService_Names(t *testing.T) {
	loop := &mockLoop{}
	tests := []struct {
		svc  *RunnerService
		want string
	}{
		{NewPipelineService(loop), "pipeline"},
		{NewWebSocketHubService(loop), "websocket-hub"},
		{NewJournalService(loop), "journal-writer"},
		{NewOutboxService(loop), "bus-outbox"},
		{NewRelayService(loop), "report-relay"},
		{NewTrustRecoveryService(loop), "trust-recovery"},
		{NewAuditService(loop), "audit-writer"},
	}
	for _, tt := range tests {
		var _ suture.Service = tt.svc
		if got := tt.svc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRunnerService_Serve(t *testing.T) {
	t.Run("returns when canceled", func(t *testing.T) {
		loop := &mockLoop{}
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- NewPipelineService(loop).Serve(ctx) }()

		cancel()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return")
		}
	})

	t.Run("propagates failure", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewJournalService(&mockLoop{err: boom}).Serve(context.Background())
		if !errors.Is(err, boom) {
			t.Errorf("Serve() = %v, want %v", err, boom)
		}
	})
}

func TestRunnerService_RestartedBySupervisor(t *testing.T) {
	loop := &mockLoop{err: errors.New("crash")}
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 100,
		FailureBackoff:   time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewOutboxService(loop))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for loop.count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("service started %d times, want at least 3", loop.count.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh
}
