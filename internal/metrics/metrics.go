// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Tick loop timing and inbound queue pressure
// - Sequence lifecycle (started, terminal state, aborted evaluations)
// - Reports and penalties
// - Bypass tickets
// - Message bus, websocket, circuit breakers and the violation journal

var (
	// Tick Loop Metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardian_tick_duration_seconds",
			Help:    "Wall time spent processing one pipeline tick",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	TickOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_tick_overruns_total",
			Help: "Ticks whose processing took longer than the tick interval",
		},
	)

	CurrentTick = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_current_tick",
			Help: "Most recently completed pipeline tick",
		},
	)

	InboundQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_inbound_queue_depth",
			Help: "Commands waiting for the next tick",
		},
	)

	InboundDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_inbound_dropped_total",
			Help: "Commands dropped because the inbound queue was full",
		},
		[]string{"kind"}, // state, trigger, bypass, reconfigure
	)

	TrackedEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_tracked_entities",
			Help: "Entities with a current snapshot",
		},
	)

	// Sequence Metrics
	ActiveSequences = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_active_sequences",
			Help: "Non-terminal sequences in the live table",
		},
	)

	SequencesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_sequences_started_total",
			Help: "Sequences that entered the waiting state",
		},
		[]string{"check"},
	)

	SequencesTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_sequences_terminal_total",
			Help: "Sequences that reached a terminal state",
		},
		[]string{"check", "state"}, // finished, expired, cancelled
	)

	TriggersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_triggers_skipped_total",
			Help: "Trigger events that did not start a sequence",
		},
		[]string{"reason"}, // host_cause, bypass, unresolvable, filtered, in_flight
	)

	EvaluationAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_evaluation_aborts_total",
			Help: "Evaluations that ended without a verdict",
		},
		[]string{"check", "reason"}, // overload, stale, missing_capture, excluded, bypass
	)

	SequencePanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_sequence_panics_total",
			Help: "Panics recovered inside captures, conditions or stages",
		},
		[]string{"check", "boundary"}, // sequence, heuristic, penalty, task
	)

	// Report Metrics
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_reports_total",
			Help: "Reports produced by finished sequences",
		},
		[]string{"check", "result"}, // pass, fail
	)

	ReportSeverity = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_report_severity",
			Help:    "Severity of failing reports",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 1, 2, 5},
		},
		[]string{"check"},
	)

	HeuristicVetoes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_heuristic_vetoes_total",
			Help: "Stage cycles stopped by a heuristic before penalties",
		},
		[]string{"detection", "heuristic"},
	)

	PenaltiesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_penalties_applied_total",
			Help: "Penalty actions taken on confirmed violations",
		},
		[]string{"detection", "penalty"},
	)

	// Bypass Ticket Metrics
	BypassTicketsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_bypass_tickets_open",
			Help: "Currently open bypass tickets",
		},
	)

	BypassTicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_bypass_tickets_issued_total",
			Help: "Bypass tickets issued",
		},
		[]string{"owner", "kind"}, // kind: explicit, timed
	)

	BypassSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_bypass_suppressed_sequences_total",
			Help: "In-flight sequences force-finished by an open ticket",
		},
	)

	// Notifier Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_notifications_sent_total",
			Help: "Violation notifications delivered",
		},
		[]string{"notifier"},
	)

	NotificationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_notification_errors_total",
			Help: "Violation notifications that failed",
		},
		[]string{"notifier"},
	)

	// Message Bus Metrics
	BusMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_bus_messages_consumed_total",
			Help: "Messages consumed from the bus",
		},
		[]string{"topic"},
	)

	BusMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_bus_messages_published_total",
			Help: "Messages published to the bus",
		},
		[]string{"topic"},
	)

	BusMessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_bus_messages_rejected_total",
			Help: "Messages that could not be decoded or were duplicates",
		},
		[]string{"topic", "reason"}, // decode, duplicate
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Journal Metrics
	JournalWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_journal_writes_total",
			Help: "Violation records written to the journal",
		},
		[]string{"result"}, // success, failure, dropped
	)

	JournalPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_journal_pruned_total",
			Help: "Violation records removed by retention pruning",
		},
	)

	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Config Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_config_reloads_total",
			Help: "Configuration reload attempts",
		},
		[]string{"result"}, // success, failure
	)
)

// RecordTick records the processing time of one tick and whether it overran
// the tick interval.
func RecordTick(tick uint64, duration, interval time.Duration) {
	TickDuration.Observe(duration.Seconds())
	CurrentTick.Set(float64(tick))
	if interval > 0 && duration > interval {
		TickOverruns.Inc()
	}
}

// RecordSequenceStarted records a sequence entering the waiting state.
func RecordSequenceStarted(check string) {
	SequencesStarted.WithLabelValues(check).Inc()
}

// RecordSequenceTerminal records a sequence reaching a terminal state.
func RecordSequenceTerminal(check, state string) {
	SequencesTerminal.WithLabelValues(check, state).Inc()
}

// RecordTriggerSkipped records a trigger that did not start a sequence.
func RecordTriggerSkipped(reason string) {
	TriggersSkipped.WithLabelValues(reason).Inc()
}

// RecordEvaluationAbort records an evaluation that ended without a verdict.
func RecordEvaluationAbort(check, reason string) {
	EvaluationAborts.WithLabelValues(check, reason).Inc()
}

// RecordPanic records a recovered panic at a containment boundary.
func RecordPanic(check, boundary string) {
	SequencePanics.WithLabelValues(check, boundary).Inc()
}

// RecordReport records a report and, for failures, its severity.
func RecordReport(check string, violation bool, severity float64) {
	if violation {
		ReportsTotal.WithLabelValues(check, "fail").Inc()
		ReportSeverity.WithLabelValues(check).Observe(severity)
		return
	}
	ReportsTotal.WithLabelValues(check, "pass").Inc()
}

// RecordPenalty records a penalty action.
func RecordPenalty(detection, penalty string) {
	PenaltiesApplied.WithLabelValues(detection, penalty).Inc()
}

// RecordHeuristicVeto records a heuristic stopping the stage cycle.
func RecordHeuristicVeto(detection, heuristic string) {
	HeuristicVetoes.WithLabelValues(detection, heuristic).Inc()
}

// RecordTicketIssued records a new bypass ticket.
func RecordTicketIssued(owner string, timed bool) {
	kind := "explicit"
	if timed {
		kind = "timed"
	}
	BypassTicketsIssued.WithLabelValues(owner, kind).Inc()
	BypassTicketsOpen.Inc()
}

// RecordTicketClosed records a bypass ticket closing.
func RecordTicketClosed() {
	BypassTicketsOpen.Dec()
}

// RecordNotification records a notifier delivery outcome.
func RecordNotification(notifier string, err error) {
	if err != nil {
		NotificationErrors.WithLabelValues(notifier).Inc()
		return
	}
	NotificationsSent.WithLabelValues(notifier).Inc()
}

// RecordInboundDropped records a command dropped at the inbound queue.
func RecordInboundDropped(kind string) {
	InboundDropped.WithLabelValues(kind).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJournalWrite records a journal write outcome.
func RecordJournalWrite(result string) {
	JournalWrites.WithLabelValues(result).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func RecordConfigReload(err error) {
	if err != nil {
		ConfigReloads.WithLabelValues("failure").Inc()
		return
	}
	ConfigReloads.WithLabelValues("success").Inc()
}

// RecordBusConsumed records a message taken off the bus.
func RecordBusConsumed(topic string) {
	BusMessagesConsumed.WithLabelValues(topic).Inc()
}

// RecordBusPublished records a message published to the bus.
func RecordBusPublished(topic string) {
	BusMessagesPublished.WithLabelValues(topic).Inc()
}

// RecordBusRejected records a message dropped without processing.
func RecordBusRejected(topic, reason string) {
	BusMessagesRejected.WithLabelValues(topic, reason).Inc()
}
