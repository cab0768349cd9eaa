// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package report

import (
	"testing"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

func TestBuilderProducesImmutableReport(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := New("Horizontal Speed").
		Entity("player-1").
		Provenance("movement_speed", "horizontal_speed").
		Violation(true).
		Information("first").
		Informationf("observed %.1f", 50.0).
		Locations(entity.Vector3{}, entity.Vector3{X: 50}).
		Severity(0.9).
		Evidence("observed", 50).
		At(at)

	r := b.Build()

	if r.ID() == "" {
		t.Error("expected generated ID")
	}
	if r.Type() != "Horizontal Speed" || !r.Violation() || r.Severity() != 0.9 {
		t.Errorf("unexpected report %v", r)
	}
	if r.CreatedAt() != at {
		t.Errorf("CreatedAt() = %v, want %v", r.CreatedAt(), at)
	}

	info := r.Information()
	if len(info) != 2 || info[1] != "observed 50.0" {
		t.Fatalf("Information() = %v", info)
	}
	info[0] = "mutated"
	if r.Information()[0] != "first" {
		t.Error("Information() must return a copy")
	}

	ev := r.Evidence()
	ev["observed"] = 0
	if r.Evidence()["observed"] != 50 {
		t.Error("Evidence() must return a copy")
	}

	// Mutating the builder after Build must not leak into the report.
	b.Evidence("observed", 1)
	if r.Evidence()["observed"] != 50 {
		t.Error("builder mutation leaked into built report")
	}
}

func TestWithProvenanceKeepsExplicitValues(t *testing.T) {
	r := New("Block Reach").Provenance("reach", "").Build()
	stamped := r.WithProvenance("e1", "other", "block_reach")

	if stamped.Entity() != "e1" {
		t.Errorf("Entity() = %q", stamped.Entity())
	}
	if stamped.DetectionID() != "reach" {
		t.Errorf("DetectionID() = %q, want explicit value kept", stamped.DetectionID())
	}
	if stamped.CheckID() != "block_reach" {
		t.Errorf("CheckID() = %q", stamped.CheckID())
	}
	if r.Entity() != "" {
		t.Error("WithProvenance must not modify the receiver")
	}
}

func TestRecord(t *testing.T) {
	r := New("Invalid Control").Entity("e").Violation(true).Severity(1).Information("sneaking").Build()
	rec := r.Record()
	if rec.Type != "Invalid Control" || rec.Entity != "e" || !rec.Violation || rec.Severity != 1 {
		t.Errorf("Record() = %+v", rec)
	}
	if len(rec.Information) != 1 {
		t.Errorf("Record().Information = %v", rec.Information)
	}
}

func TestSummarySeverity(t *testing.T) {
	s := NewSummary()
	if _, _, ok := s.Severity(); ok {
		t.Fatal("empty summary must report no severity")
	}

	s.SetReport(New("Horizontal Speed").Violation(true).Severity(0.8).Build())
	sev, violation, ok := s.Severity()
	if !ok || !violation || sev != 0.8 {
		t.Errorf("Severity() = %v, %v, %v", sev, violation, ok)
	}

	s.SetSignal(Signal{Severity: 0.3, Confirmed: false, Source: "distribution"})
	sev, violation, _ = s.Severity()
	if sev != 0.3 || violation {
		t.Errorf("Severity() with unconfirmed signal = %v, %v", sev, violation)
	}

	s.SetSignal(Signal{Severity: 0.5, Confirmed: true})
	_, violation, _ = s.Severity()
	if !violation {
		t.Error("confirmed signal on a violation must keep the violation")
	}
}
