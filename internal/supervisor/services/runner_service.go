// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package services

import (
	"context"
)

// ContextRunner matches components with a RunWithContext loop.
//
// Satisfied by *pipeline.Pipeline and *websocket.Hub.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// Runner matches components with a Run loop.
//
// Satisfied by *journal.Journal, *eventprocessor.Outbox,
// *websocket.Relay and *audit.Logger.
type Runner interface {
	Run(ctx context.Context) error
}

// RecoveryRunner matches *detection.TrustScores.
type RecoveryRunner interface {
	RunRecovery(ctx context.Context) error
}

// RunnerService adapts a blocking run function to suture.Service. The
// function must return when ctx is canceled.
type RunnerService struct {
	run  func(ctx context.Context) error
	name string
}

// NewRunnerService wraps run under name.
func NewRunnerService(name string, run func(ctx context.Context) error) *RunnerService {
	return &RunnerService{run: run, name: name}
}

// NewPipelineService supervises the tick loop.
func NewPipelineService(p ContextRunner) *RunnerService {
	return NewRunnerService("pipeline", p.RunWithContext)
}

// NewWebSocketHubService supervises the websocket hub.
func NewWebSocketHubService(hub ContextRunner) *RunnerService {
	return NewRunnerService("websocket-hub", hub.RunWithContext)
}

// NewJournalService supervises the journal writer.
func NewJournalService(j Runner) *RunnerService {
	return NewRunnerService("journal-writer", j.Run)
}

// NewOutboxService supervises the bus publisher.
func NewOutboxService(o Runner) *RunnerService {
	return NewRunnerService("bus-outbox", o.Run)
}

// NewRelayService supervises the bus-to-websocket report relay.
func NewRelayService(r Runner) *RunnerService {
	return NewRunnerService("report-relay", r.Run)
}

// NewAuditService supervises the audit trail writer.
func NewAuditService(a Runner) *RunnerService {
	return NewRunnerService("audit-writer", a.Run)
}

// NewTrustRecoveryService supervises trust score recovery.
func NewTrustRecoveryService(t RecoveryRunner) *RunnerService {
	return NewRunnerService("trust-recovery", t.RunRecovery)
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *RunnerService) String() string {
	return s.name
}
