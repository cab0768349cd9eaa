// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/cache"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// DistributionConfig tunes DistributionHeuristic.
type DistributionConfig struct {
	// Alpha is the smoothing factor of the per-entity severity average.
	Alpha float64 `koanf:"alpha" json:"alpha" validate:"gt=0,lte=1"`

	// WindowTicks is the span over which violations are counted.
	WindowTicks uint64 `koanf:"window_ticks" json:"window_ticks" validate:"gt=0"`

	// MinViolations confirms a violation once this many fell inside the
	// window, including the current one.
	MinViolations int `koanf:"min_violations" json:"min_violations" validate:"gte=1"`

	// ImmediateSeverity confirms any single violation at or above it.
	ImmediateSeverity float64 `koanf:"immediate_severity" json:"immediate_severity" validate:"gte=0"`

	// MaxEntities bounds the per-entity state kept in memory.
	MaxEntities int `koanf:"max_entities" json:"max_entities" validate:"gt=0"`

	// IdleTTL forgets an entity's average after this long without reports.
	IdleTTL time.Duration `koanf:"idle_ttl" json:"idle_ttl"`
}

// DefaultDistributionConfig confirms the second violation within 30
// seconds of ticks or any violation with severity 0.5 or more.
func DefaultDistributionConfig() DistributionConfig {
	return DistributionConfig{
		Alpha:             0.3,
		WindowTicks:       600,
		MinViolations:     2,
		ImmediateSeverity: 0.5,
		MaxEntities:       10000,
		IdleTTL:           10 * time.Minute,
	}
}

// DistributionHeuristic smooths each entity's severities with an
// exponential moving average and counts its recent violations per check.
// It writes a Signal into the summary and vetoes unconfirmed violations.
type DistributionHeuristic struct {
	cfg     DistributionConfig
	average *cache.LRUCache[float64]
	counts  *cache.SlidingWindowStore
}

// NewDistributionHeuristic creates a distribution heuristic.
func NewDistributionHeuristic(cfg DistributionConfig) *DistributionHeuristic {
	return &DistributionHeuristic{
		cfg:     cfg,
		average: cache.NewLRUCache[float64](cfg.MaxEntities, cfg.IdleTTL),
		counts:  cache.NewSlidingWindowStore(cfg.WindowTicks, 10, cfg.MaxEntities),
	}
}

func (h *DistributionHeuristic) Name() string { return "distribution" }

// Analyze implements stage.Heuristic.
func (h *DistributionHeuristic) Analyze(ctx stage.Context) bool {
	r := ctx.Report()
	key := string(ctx.Entity) + "/" + r.CheckID()

	observed := 0.0
	if r.Violation() {
		observed = r.Severity()
	}
	avg, ok := h.average.Get(key)
	if !ok {
		avg = observed
	} else {
		avg = h.cfg.Alpha*observed + (1-h.cfg.Alpha)*avg
	}
	h.average.Add(key, avg)

	if r.Violation() {
		h.counts.Increment(key, ctx.Tick)
	}
	count := int(h.counts.Count(key, ctx.Tick))

	confirmed := r.Violation() &&
		(count >= h.cfg.MinViolations || r.Severity() >= h.cfg.ImmediateSeverity)

	severity := avg
	if r.Severity() > severity && confirmed {
		severity = r.Severity()
	}
	ctx.Summary.SetSignal(report.Signal{
		Severity:   severity,
		Violations: count,
		Confirmed:  confirmed,
		Source:     h.Name(),
	})

	return !r.Violation() || confirmed
}

// Forget drops the state kept for an entity's check.
func (h *DistributionHeuristic) Forget(key string) {
	h.average.Remove(key)
	h.counts.Remove(key)
}

// Cleanup evicts idle entities. It returns the number of window entries
// removed.
func (h *DistributionHeuristic) Cleanup(tick uint64) int {
	h.average.CleanupExpired()
	return h.counts.CleanupInactive(tick)
}
