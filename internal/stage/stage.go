// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package stage defines the closed set of stages a detection is built from
// and the cycle that runs them once per finished sequence.
//
// A cycle holds Check, Heuristic and Penalty stages. Checks contribute
// sequence blueprints. When a sequence finishes with a report, the cycle
// runs every Heuristic in order; any heuristic may veto. Unless vetoed, and
// only for violating reports, every Penalty then runs. Each stage runs
// inside its own panic boundary so one failing stage cannot take down the
// tick.
package stage

import (
	"errors"
	"fmt"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
)

// Kind is the stage variant.
type Kind int

const (
	KindCheck Kind = iota
	KindHeuristic
	KindPenalty
)

func (k Kind) String() string {
	switch k {
	case KindCheck:
		return "check"
	case KindHeuristic:
		return "heuristic"
	case KindPenalty:
		return "penalty"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Owner identifies the detection a cycle belongs to.
type Owner interface {
	ID() string
	Name() string
}

// Context is handed to heuristics and penalties.
type Context struct {
	Entity  entity.ID
	Owner   Owner
	Summary *report.Summary
	Tick    uint64
}

// Report returns the summary's report. Every context built by Run carries
// one.
func (c Context) Report() *report.Report {
	r, _ := c.Summary.Report()
	return r
}

// Check produces the blueprint for its sequences.
type Check interface {
	ID() string
	Blueprint() *sequence.Blueprint
}

// Heuristic inspects a finished report. Returning false vetoes the
// penalties for this report.
type Heuristic interface {
	Name() string
	Analyze(ctx Context) bool
}

// ErrSkipped is returned by a penalty that chose not to act, typically
// because the severity is below its threshold. The cycle neither records
// it as applied nor as failed.
var ErrSkipped = errors.New("penalty skipped")

// Penalty acts on a violating report.
type Penalty interface {
	Name() string
	Apply(ctx Context) error
}

// Stage is one member of a cycle. Exactly one of its payloads is set,
// matching Kind.
type Stage struct {
	kind      Kind
	check     Check
	heuristic Heuristic
	penalty   Penalty
}

// CheckStage wraps a check.
func CheckStage(c Check) Stage { return Stage{kind: KindCheck, check: c} }

// HeuristicStage wraps a heuristic.
func HeuristicStage(h Heuristic) Stage { return Stage{kind: KindHeuristic, heuristic: h} }

// PenaltyStage wraps a penalty.
func PenaltyStage(p Penalty) Stage { return Stage{kind: KindPenalty, penalty: p} }

func (s Stage) Kind() Kind           { return s.kind }
func (s Stage) Check() Check         { return s.check }
func (s Stage) Heuristic() Heuristic { return s.heuristic }
func (s Stage) Penalty() Penalty     { return s.penalty }

// Name returns the stage's identifying name.
func (s Stage) Name() string {
	switch s.kind {
	case KindCheck:
		return s.check.ID()
	case KindHeuristic:
		return s.heuristic.Name()
	case KindPenalty:
		return s.penalty.Name()
	}
	return ""
}
