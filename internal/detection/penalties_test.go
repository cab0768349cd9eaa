// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/scheduler"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

type mockMover struct {
	mu    sync.Mutex
	moves map[entity.ID]entity.Vector3
	err   error
}

func (m *mockMover) Relocate(id entity.ID, pos entity.Vector3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.moves == nil {
		m.moves = make(map[entity.ID]entity.Vector3)
	}
	m.moves[id] = pos
	return nil
}

type mockJournal struct {
	mu      sync.Mutex
	reports []*report.Report
}

func (m *mockJournal) Append(r *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

type mockPublisher struct {
	published []*report.Report
	err       error
}

func (m *mockPublisher) PublishReport(r *report.Report) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, r)
	return nil
}

type mockBroadcaster struct {
	mu       sync.Mutex
	messages []string
	payloads []interface{}
}

func (m *mockBroadcaster) BroadcastJSON(messageType string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messageType)
	m.payloads = append(m.payloads, data)
}

type mockNotifier struct {
	name    string
	enabled bool
	sent    chan *Payload
	err     error
}

func (m *mockNotifier) Name() string  { return m.name }
func (m *mockNotifier) Enabled() bool { return m.enabled }

func (m *mockNotifier) Send(_ context.Context, p *Payload) error {
	m.sent <- p
	return m.err
}

type penaltyHarness struct {
	detection *MovementSpeedDetection
	mover     *mockMover
	journal   *mockJournal
	publisher *mockPublisher
	caster    *mockBroadcaster
	notifier  *mockNotifier
	tickets   *bypass.Service
	trust     *TrustScores
}

func newPenaltyHarness() *penaltyHarness {
	h := &penaltyHarness{
		mover:     &mockMover{},
		journal:   &mockJournal{},
		publisher: &mockPublisher{},
		caster:    &mockBroadcaster{},
		notifier:  &mockNotifier{name: "mock", enabled: true, sent: make(chan *Payload, 4)},
		tickets:   bypass.NewService(scheduler.New()),
		trust:     NewTrustScores(DefaultTrustConfig(), nil),
	}
	h.detection = NewMovementSpeedDetection(nil,
		stage.PenaltyStage(NewLogPenalty()),
		stage.PenaltyStage(NewNotifyPenalty(h.caster, h.notifier)),
		stage.PenaltyStage(NewResetPenalty(h.mover, h.tickets, DefaultResetBypassTicks)),
		stage.PenaltyStage(NewJournalPenalty(h.journal)),
		stage.PenaltyStage(NewPublishPenalty(h.publisher)),
		stage.PenaltyStage(NewTrustPenalty(h.trust)),
	)
	return h
}

func TestPenalties_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		severity float64
		want     []string
	}{
		{
			name:     "below notify",
			severity: 0.05,
			want:     []string{PenaltyLog, PenaltyJournal, PenaltyPublish},
		},
		{
			name:     "below reset",
			severity: 0.25,
			want:     []string{PenaltyLog, PenaltyNotify, PenaltyJournal, PenaltyPublish, PenaltyTrust},
		},
		{
			name:     "everything",
			severity: 0.6,
			want:     []string{PenaltyLog, PenaltyNotify, PenaltyReset, PenaltyJournal, PenaltyPublish, PenaltyTrust},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPenaltyHarness()
			out := h.detection.Cycle().Run(contextFor(h.detection, true, tt.severity, 7))

			if len(out.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", out.Errors)
			}
			if len(out.Penalties) != len(tt.want) {
				t.Fatalf("applied %v, want %v", out.Penalties, tt.want)
			}
			for i := range tt.want {
				if out.Penalties[i] != tt.want[i] {
					t.Errorf("penalty[%d] = %q, want %q", i, out.Penalties[i], tt.want[i])
				}
			}
			if len(h.journal.reports) != 1 {
				t.Errorf("journal has %d reports, want 1", len(h.journal.reports))
			}
		})
	}
}

func TestResetPenalty(t *testing.T) {
	h := newPenaltyHarness()
	h.detection.Cycle().Run(contextFor(h.detection, true, 0.6, 7))

	got, ok := h.mover.moves["e1"]
	if !ok {
		t.Fatal("entity was not relocated")
	}
	want := entity.Vector3{X: 1, Y: 64, Z: 1}
	if got != want {
		t.Errorf("relocated to %v, want %v", got, want)
	}
	if !h.tickets.Blocks("e1", entity.EventMove, HorizontalSpeedCheckID) {
		t.Error("reset did not open a movement bypass ticket")
	}
	open := h.tickets.Open("e1")
	if len(open) != 1 || open[0].Owner != PenaltyReset {
		t.Errorf("open tickets = %+v, want one owned by reset", open)
	}
}

func TestResetPenalty_ReachReturnsToFeet(t *testing.T) {
	feet := entity.Vector3{X: 3, Y: 64, Z: 3}
	target := entity.Vector3{X: 3, Y: 65.62, Z: 10}

	c := capture.NewContainer()
	capture.Put(c, capture.InitialPosition, feet)
	r, err := ReachCondition(TypeBlockReach, 4.5, 0.5, nil)(sequence.Evaluation{
		Snapshot:  entity.Snapshot{ID: "e1", EyeHeight: 1.62},
		Container: c,
		Trigger:   entity.Event{Type: entity.EventInteractBlock, Entity: "e1", Target: &target},
	})
	if err != nil {
		t.Fatalf("reach condition: %v", err)
	}
	if !r.Violation() {
		t.Fatal("interaction 7 blocks away was not a violation")
	}

	s := report.NewSummary()
	s.SetReport(r.WithProvenance("e1", ReachID, BlockReachCheckID))
	mover := &mockMover{}
	p := NewResetPenalty(mover, nil, 0)
	if err := p.Apply(stage.Context{Entity: "e1", Summary: s, Tick: 3}); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if got := mover.moves["e1"]; got != feet {
		t.Errorf("relocated to %v, want foot position %v", got, feet)
	}
}

func TestResetPenalty_RelocateError(t *testing.T) {
	h := newPenaltyHarness()
	h.mover.err = errors.New("entity offline")

	out := h.detection.Cycle().Run(contextFor(h.detection, true, 0.6, 7))
	if len(out.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", out.Errors)
	}
	// The remaining penalties still ran.
	if len(h.journal.reports) != 1 {
		t.Error("journal penalty skipped after a failing reset")
	}
}

func TestNotifyPenalty(t *testing.T) {
	h := newPenaltyHarness()
	h.detection.Cycle().Run(contextFor(h.detection, true, 0.6, 7))

	select {
	case p := <-h.notifier.sent:
		if p.Detection != MovementSpeedID {
			t.Errorf("Detection = %q, want %q", p.Detection, MovementSpeedID)
		}
		if p.Severity != SeverityWarning {
			t.Errorf("Severity = %q, want %q", p.Severity, SeverityWarning)
		}
		if p.Report.Entity != "e1" {
			t.Errorf("Report.Entity = %q, want e1", p.Report.Entity)
		}
		if p.Tick != 7 {
			t.Errorf("Tick = %d, want 7", p.Tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}

	h.caster.mu.Lock()
	defer h.caster.mu.Unlock()
	if len(h.caster.messages) != 1 || h.caster.messages[0] != "violation" {
		t.Errorf("broadcasts = %v, want [violation]", h.caster.messages)
	}
}

func TestNotifyPenalty_DisabledNotifierSkipped(t *testing.T) {
	n := &mockNotifier{name: "off", enabled: false, sent: make(chan *Payload, 1)}
	p := NewNotifyPenalty(nil, n)
	d := NewMovementSpeedDetection(nil)

	if err := p.Apply(contextFor(d, true, 0.6, 1)); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	select {
	case <-n.sent:
		t.Error("disabled notifier was called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPenalties_SkipPassingReports(t *testing.T) {
	p := NewJournalPenalty(&mockJournal{})
	err := p.Apply(contextFor(NewMovementSpeedDetection(nil), false, 0, 1))
	if !errors.Is(err, stage.ErrSkipped) {
		t.Errorf("Apply() = %v, want ErrSkipped", err)
	}
}

func TestPublishPenalty_Error(t *testing.T) {
	pub := &mockPublisher{err: errors.New("bus closed")}
	d := NewMovementSpeedDetection(nil, stage.PenaltyStage(NewPublishPenalty(pub)))

	out := d.Cycle().Run(contextFor(d, true, 0.5, 1))
	if len(out.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", out.Errors)
	}
	if len(out.Penalties) != 0 {
		t.Errorf("failed penalty recorded as applied: %v", out.Penalties)
	}
}

func TestTrustScores(t *testing.T) {
	var escalated []TrustScore
	scores := NewTrustScores(DefaultTrustConfig(), func(s TrustScore) {
		escalated = append(escalated, s)
	})

	if got := scores.Get("e1"); got.Score != MaxTrustScore || got.Restricted {
		t.Fatalf("unknown entity = %+v, want full trust", got)
	}

	var last TrustScore
	for i := 0; i < 6; i++ {
		last = scores.Decrement("e1")
	}
	if last.Score != 40 {
		t.Errorf("Score = %d, want 40", last.Score)
	}
	if !last.Restricted {
		t.Error("entity below threshold not restricted")
	}
	if last.ViolationsCount != 6 {
		t.Errorf("ViolationsCount = %d, want 6", last.ViolationsCount)
	}

	scores.Decrement("e1")
	if len(escalated) != 1 {
		t.Fatalf("escalated %d times, want 1", len(escalated))
	}
	if escalated[0].Score != 40 {
		t.Errorf("escalated at score %d, want 40", escalated[0].Score)
	}

	low := scores.Low(50)
	if len(low) != 1 || low[0].Entity != "e1" {
		t.Errorf("Low(50) = %+v, want e1", low)
	}

	for i := 0; i < 20; i++ {
		scores.Recover()
	}
	if got := scores.Get("e1"); got.Restricted || got.Score != 50 {
		t.Errorf("after recovery = %+v, want score 50 unrestricted", got)
	}
}

func TestTrustScores_FloorAndDrop(t *testing.T) {
	cfg := DefaultTrustConfig()
	cfg.Decrement = 60
	cfg.Recovery = 100
	scores := NewTrustScores(cfg, nil)

	scores.Decrement("e1")
	if got := scores.Decrement("e1"); got.Score != 0 {
		t.Errorf("Score = %d, want 0", got.Score)
	}

	scores.Recover()
	if len(scores.Low(MaxTrustScore+1)) != 0 {
		t.Error("fully recovered entity still tracked")
	}
}
