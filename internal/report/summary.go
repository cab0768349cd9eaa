// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package report

import (
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
)

// Signal is the aggregated verdict a heuristic derives from a Report.
// Penalties act on the signal when present and on the raw report otherwise.
type Signal struct {
	Severity   float64 `json:"severity"`
	Violations int     `json:"violations"`
	Confirmed  bool    `json:"confirmed"`
	Source     string  `json:"source"`
}

var (
	reportSlot = capture.NewKey[*Report]("summary_report")
	signalSlot = capture.NewKey[Signal]("summary_signal")
)

// Summary is a small typed map carried by a sequence from creation to its
// terminal state.
type Summary struct {
	c *capture.Container
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{c: capture.NewContainer()}
}

// Report returns the stored report, if any.
func (s *Summary) Report() (*Report, bool) {
	r, ok := capture.Get(s.c, reportSlot)
	return r, ok && r != nil
}

// SetReport stores the report. Only the sequence engine calls this.
func (s *Summary) SetReport(r *Report) {
	capture.Put(s.c, reportSlot, r)
}

// Signal returns the heuristic signal, if any.
func (s *Summary) Signal() (Signal, bool) {
	return capture.Get(s.c, signalSlot)
}

// SetSignal stores the heuristic signal.
func (s *Summary) SetSignal(sig Signal) {
	capture.Put(s.c, signalSlot, sig)
}

// Severity returns the severity penalties should act on: the signal's when
// a heuristic produced one, otherwise the report's. ok is false when the
// summary has no report.
func (s *Summary) Severity() (severity float64, violation bool, ok bool) {
	r, ok := s.Report()
	if !ok {
		return 0, false, false
	}
	if sig, has := s.Signal(); has {
		return sig.Severity, r.Violation() && sig.Confirmed, true
	}
	return r.Severity(), r.Violation(), true
}
