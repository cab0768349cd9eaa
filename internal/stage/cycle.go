// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package stage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
)

// Cycle is the fixed, ordered stage list of one detection.
type Cycle struct {
	stages []Stage
	logger zerolog.Logger
}

// NewCycle creates a cycle. Stages keep their relative order within each
// kind.
func NewCycle(stages ...Stage) *Cycle {
	return &Cycle{
		stages: append([]Stage(nil), stages...),
		logger: logging.WithComponent("stage"),
	}
}

// Len returns the number of stages of kind.
func (c *Cycle) Len(kind Kind) int {
	n := 0
	c.Each(kind, func(Stage) bool { n++; return true })
	return n
}

// Each calls fn for every stage of kind in order until fn returns false.
func (c *Cycle) Each(kind Kind, fn func(Stage) bool) {
	for _, s := range c.stages {
		if s.kind != kind {
			continue
		}
		if !fn(s) {
			return
		}
	}
}

// Checks returns the check stages in order.
func (c *Cycle) Checks() []Check {
	var out []Check
	c.Each(KindCheck, func(s Stage) bool {
		out = append(out, s.check)
		return true
	})
	return out
}

// Outcome describes one run of the cycle.
type Outcome struct {
	Vetoed    bool
	VetoedBy  string
	Penalties []string
	Errors    []error
}

// Run drives the heuristics and then, for a violating report that no
// heuristic vetoed, the penalties. A summary without a report is ignored.
func (c *Cycle) Run(ctx Context) Outcome {
	var out Outcome
	if ctx.Summary == nil {
		return out
	}
	if _, ok := ctx.Summary.Report(); !ok {
		return out
	}

	owner := ""
	if ctx.Owner != nil {
		owner = ctx.Owner.ID()
	}

	c.Each(KindHeuristic, func(s Stage) bool {
		if c.analyze(ctx, owner, s.heuristic) {
			return true
		}
		out.Vetoed = true
		out.VetoedBy = s.heuristic.Name()
		metrics.RecordHeuristicVeto(owner, s.heuristic.Name())
		return false
	})
	if out.Vetoed {
		return out
	}

	if _, violation, _ := ctx.Summary.Severity(); !violation {
		return out
	}

	c.Each(KindPenalty, func(s Stage) bool {
		err := c.apply(ctx, owner, s.penalty)
		switch {
		case errors.Is(err, ErrSkipped):
			return true
		case err != nil:
			out.Errors = append(out.Errors, err)
			return true
		}
		out.Penalties = append(out.Penalties, s.penalty.Name())
		metrics.RecordPenalty(owner, s.penalty.Name())
		return true
	})
	return out
}

// analyze runs one heuristic. A panicking heuristic does not veto.
func (c *Cycle) analyze(ctx Context, owner string, h Heuristic) (pass bool) {
	defer func() {
		if r := recover(); r != nil {
			c.recovered(ctx, owner, "heuristic", h.Name(), r)
			pass = true
		}
	}()
	return h.Analyze(ctx)
}

func (c *Cycle) apply(ctx Context, owner string, p Penalty) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.recovered(ctx, owner, "penalty", p.Name(), r)
			err = fmt.Errorf("penalty %s panicked: %v", p.Name(), r)
		}
	}()
	if err := p.Apply(ctx); err != nil {
		if errors.Is(err, ErrSkipped) {
			return err
		}
		log := logging.ForSequence(c.logger, string(ctx.Entity), checkOf(ctx), ctx.Tick)
		log.Warn().Err(err).Str("penalty", p.Name()).Msg("penalty failed")
		return fmt.Errorf("penalty %s: %w", p.Name(), err)
	}
	return nil
}

func (c *Cycle) recovered(ctx Context, owner, boundary, name string, r any) {
	metrics.RecordPanic(checkOf(ctx), boundary)
	log := logging.ForSequence(c.logger, string(ctx.Entity), checkOf(ctx), ctx.Tick)
	log.Error().
		Str("detection", owner).
		Str(boundary, name).
		Msgf("%s panicked: %v", boundary, r)
}

func checkOf(ctx Context) string {
	if r, ok := ctx.Summary.Report(); ok {
		return r.CheckID()
	}
	return ""
}
