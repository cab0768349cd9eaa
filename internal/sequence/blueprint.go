// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package sequence

import (
	"fmt"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
)

// Evaluation is everything a Condition may read. The Container and Summary
// must not be mutated by the Condition.
type Evaluation struct {
	Snapshot     entity.Snapshot
	Container    *capture.Container
	Summary      *report.Summary
	Trigger      entity.Event
	LastAction   time.Time
	Now          time.Time
	Tick         uint64
	TickDuration time.Duration
}

// Condition turns accumulated evidence into a Report. Returning an error
// aborts the evaluation: the sequence still finishes, without a report.
type Condition func(Evaluation) (*report.Report, error)

// Filter decides whether a trigger may start a sequence for an entity.
type Filter func(snap entity.Snapshot, ev entity.Event) bool

// Blueprint describes the sequences one check produces.
type Blueprint struct {
	DetectionID string
	CheckID     string
	Trigger     entity.EventType

	// Captures are bound to every new sequence. They must be stateless
	// across sequences; per-sequence state lives in the container.
	Captures []capture.Capture

	// Delay is the number of sampling ticks between observation and
	// evaluation.
	Delay uint64

	// Expire bounds, in ticks of wall time, how long a sequence may wait
	// for evaluation. Zero disables expiry.
	Expire uint64

	Condition Condition
	Filter    Filter
}

// Validate reports whether the blueprint can produce sequences.
func (b *Blueprint) Validate() error {
	switch {
	case b.CheckID == "":
		return fmt.Errorf("%w: empty check id", ErrInvalidBlueprint)
	case b.Trigger == "":
		return fmt.Errorf("%w: check %s has no trigger", ErrInvalidBlueprint, b.CheckID)
	case b.Condition == nil:
		return fmt.Errorf("%w: check %s has no condition", ErrInvalidBlueprint, b.CheckID)
	case b.Expire != 0 && b.Expire <= b.Delay:
		return fmt.Errorf("%w: check %s expires (%d) before its delay (%d) elapses",
			ErrInvalidBlueprint, b.CheckID, b.Expire, b.Delay)
	}
	return nil
}
