// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package stage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
)

type owner struct{}

func (owner) ID() string   { return "movement" }
func (owner) Name() string { return "Movement" }

type recorder struct {
	calls []string
}

type fakeHeuristic struct {
	name string
	pass bool
	rec  *recorder
	boom bool
}

func (h *fakeHeuristic) Name() string { return h.name }
func (h *fakeHeuristic) Analyze(ctx Context) bool {
	h.rec.calls = append(h.rec.calls, h.name)
	if h.boom {
		panic("heuristic exploded")
	}
	return h.pass
}

type fakePenalty struct {
	name string
	err  error
	rec  *recorder
	boom bool
}

func (p *fakePenalty) Name() string { return p.name }
func (p *fakePenalty) Apply(ctx Context) error {
	p.rec.calls = append(p.rec.calls, p.name)
	if p.boom {
		panic("penalty exploded")
	}
	return p.err
}

type fakeCheck struct{ id string }

func (c fakeCheck) ID() string                     { return c.id }
func (c fakeCheck) Blueprint() *sequence.Blueprint { return &sequence.Blueprint{CheckID: c.id} }

func summaryWith(violation bool) *report.Summary {
	s := report.NewSummary()
	s.SetReport(report.New("Test").Entity("alice").Provenance("movement", "horizontal_speed").Violation(violation).Severity(0.4).Build())
	return s
}

func TestEachVisitsOnlyKindInOrder(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(
		PenaltyStage(&fakePenalty{name: "p1", rec: rec}),
		CheckStage(fakeCheck{"c1"}),
		HeuristicStage(&fakeHeuristic{name: "h1", rec: rec}),
		CheckStage(fakeCheck{"c2"}),
		PenaltyStage(&fakePenalty{name: "p2", rec: rec}),
	)

	var names []string
	c.Each(KindCheck, func(s Stage) bool {
		names = append(names, s.Name())
		return true
	})
	if want := []string{"c1", "c2"}; !reflect.DeepEqual(names, want) {
		t.Errorf("checks = %v, want %v", names, want)
	}
	if c.Len(KindPenalty) != 2 || c.Len(KindHeuristic) != 1 {
		t.Errorf("Len(penalty)=%d Len(heuristic)=%d", c.Len(KindPenalty), c.Len(KindHeuristic))
	}
	if len(c.Checks()) != 2 {
		t.Errorf("Checks() = %d, want 2", len(c.Checks()))
	}
}

func TestRunOrdering(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(
		PenaltyStage(&fakePenalty{name: "notify", rec: rec}),
		HeuristicStage(&fakeHeuristic{name: "distribution", pass: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "log", rec: rec}),
	)

	out := c.Run(Context{Entity: "alice", Owner: owner{}, Summary: summaryWith(true)})
	if want := []string{"distribution", "notify", "log"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
	if out.Vetoed || len(out.Penalties) != 2 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRunVeto(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(
		HeuristicStage(&fakeHeuristic{name: "first", pass: false, rec: rec}),
		HeuristicStage(&fakeHeuristic{name: "second", pass: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "log", rec: rec}),
	)

	out := c.Run(Context{Entity: "alice", Owner: owner{}, Summary: summaryWith(true)})
	if !out.Vetoed || out.VetoedBy != "first" {
		t.Errorf("outcome = %+v, want veto by first", out)
	}
	if want := []string{"first"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestRunPassingReportSkipsPenalties(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(
		HeuristicStage(&fakeHeuristic{name: "distribution", pass: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "log", rec: rec}),
	)

	c.Run(Context{Entity: "alice", Owner: owner{}, Summary: summaryWith(false)})
	if want := []string{"distribution"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestRunUnconfirmedSignalSkipsPenalties(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(PenaltyStage(&fakePenalty{name: "log", rec: rec}))

	sum := summaryWith(true)
	sum.SetSignal(report.Signal{Severity: 0.1, Confirmed: false})
	c.Run(Context{Entity: "alice", Summary: sum})
	if len(rec.calls) != 0 {
		t.Errorf("penalties ran on an unconfirmed signal: %v", rec.calls)
	}
}

func TestRunWithoutReportDoesNothing(t *testing.T) {
	rec := &recorder{}
	c := NewCycle(
		HeuristicStage(&fakeHeuristic{name: "h", pass: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "p", rec: rec}),
	)
	c.Run(Context{Entity: "alice", Summary: report.NewSummary()})
	c.Run(Context{Entity: "alice"})
	if len(rec.calls) != 0 {
		t.Errorf("calls = %v, want none", rec.calls)
	}
}

func TestRunContainsPanicsAndErrors(t *testing.T) {
	rec := &recorder{}
	failure := errors.New("sink down")
	c := NewCycle(
		HeuristicStage(&fakeHeuristic{name: "boom", boom: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "explodes", boom: true, rec: rec}),
		PenaltyStage(&fakePenalty{name: "fails", err: failure, rec: rec}),
		PenaltyStage(&fakePenalty{name: "log", rec: rec}),
	)

	out := c.Run(Context{Entity: "alice", Owner: owner{}, Summary: summaryWith(true), Tick: 9})
	if want := []string{"boom", "explodes", "fails", "log"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
	if len(out.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", out.Errors)
	}
	if !errors.Is(out.Errors[1], failure) {
		t.Errorf("penalty error not wrapped: %v", out.Errors[1])
	}
	if want := []string{"log"}; !reflect.DeepEqual(out.Penalties, want) {
		t.Errorf("applied = %v, want %v", out.Penalties, want)
	}
}

func TestKindString(t *testing.T) {
	if KindHeuristic.String() != "heuristic" || Kind(9).String() != "kind(9)" {
		t.Errorf("unexpected Kind strings %q %q", KindHeuristic.String(), Kind(9).String())
	}
	if s := CheckStage(fakeCheck{"c"}); s.Kind() != KindCheck || s.Check().ID() != "c" {
		t.Error("CheckStage payload mismatch")
	}
}
