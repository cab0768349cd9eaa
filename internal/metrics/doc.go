// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

/*
Package metrics defines the Prometheus instrumentation for Guardian.

All collectors are package-level variables registered with the default
registry through promauto, and exposed on /metrics by the API server.
Call sites use the Record* helpers rather than touching label values
directly, so label sets stay consistent:

	metrics.RecordReport(checkID, report.Violation(), report.Severity())
	metrics.RecordEvaluationAbort(checkID, "overload")

Tests read collectors with prometheus/testutil.
*/
package metrics
