// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"math"
	"testing"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// contextFor wraps a report in a stage context for entity e1.
func contextFor(owner stage.Owner, violation bool, severity float64, tick uint64) stage.Context {
	s := report.NewSummary()
	r := report.New(TypeHorizontalSpeed).
		Violation(violation).
		Severity(severity).
		Locations(entity.Vector3{X: 1, Y: 64, Z: 1}, entity.Vector3{X: 9, Y: 64, Z: 1}).
		Build().
		WithProvenance("e1", MovementSpeedID, HorizontalSpeedCheckID)
	s.SetReport(r)
	return stage.Context{Entity: "e1", Owner: owner, Summary: s, Tick: tick}
}

func TestDistributionHeuristic_Confirmation(t *testing.T) {
	h := NewDistributionHeuristic(DefaultDistributionConfig())

	first := contextFor(nil, true, 0.2, 100)
	if h.Analyze(first) {
		t.Error("first low-severity violation was not vetoed")
	}
	sig, ok := first.Summary.Signal()
	if !ok {
		t.Fatal("no signal written")
	}
	if sig.Confirmed || sig.Violations != 1 {
		t.Errorf("signal = %+v, want 1 unconfirmed violation", sig)
	}

	second := contextFor(nil, true, 0.2, 120)
	if !h.Analyze(second) {
		t.Error("second violation inside the window was vetoed")
	}
	sig, _ = second.Summary.Signal()
	if !sig.Confirmed || sig.Violations != 2 {
		t.Errorf("signal = %+v, want 2 confirmed violations", sig)
	}
	if math.Abs(sig.Severity-0.2) > 1e-12 {
		t.Errorf("Severity = %v, want 0.2", sig.Severity)
	}
	if _, violation, _ := second.Summary.Severity(); !violation {
		t.Error("confirmed signal does not count as a violation")
	}
}

func TestDistributionHeuristic_ImmediateSeverity(t *testing.T) {
	h := NewDistributionHeuristic(DefaultDistributionConfig())

	ctx := contextFor(nil, true, 0.8, 10)
	if !h.Analyze(ctx) {
		t.Fatal("severe first violation was vetoed")
	}
	sig, _ := ctx.Summary.Signal()
	if !sig.Confirmed {
		t.Error("severe violation not confirmed")
	}
	if sig.Severity != 0.8 {
		t.Errorf("Severity = %v, want 0.8", sig.Severity)
	}
}

func TestDistributionHeuristic_WindowExpires(t *testing.T) {
	cfg := DefaultDistributionConfig()
	cfg.WindowTicks = 100
	h := NewDistributionHeuristic(cfg)

	h.Analyze(contextFor(nil, true, 0.2, 0))
	late := contextFor(nil, true, 0.2, 1000)
	if h.Analyze(late) {
		t.Error("violation outside the window was confirmed")
	}
}

func TestDistributionHeuristic_PassingReports(t *testing.T) {
	h := NewDistributionHeuristic(DefaultDistributionConfig())

	h.Analyze(contextFor(nil, true, 0.4, 1))
	pass := contextFor(nil, false, 0, 2)
	if !h.Analyze(pass) {
		t.Error("passing report vetoed")
	}
	sig, _ := pass.Summary.Signal()
	if sig.Confirmed {
		t.Error("passing report confirmed")
	}
	// 0.3*0 + 0.7*0.4
	if math.Abs(sig.Severity-0.28) > 1e-12 {
		t.Errorf("Severity = %v, want 0.28", sig.Severity)
	}
}

func TestDistributionHeuristic_Forget(t *testing.T) {
	h := NewDistributionHeuristic(DefaultDistributionConfig())

	h.Analyze(contextFor(nil, true, 0.2, 1))
	h.Forget("e1/" + HorizontalSpeedCheckID)

	ctx := contextFor(nil, true, 0.2, 2)
	if h.Analyze(ctx) {
		t.Error("forgotten history still counted")
	}
}
