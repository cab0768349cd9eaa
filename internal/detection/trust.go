// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
)

// MaxTrustScore is the score of an entity with no recent violations.
const MaxTrustScore = 100

// TrustScore is an entity's trust score.
type TrustScore struct {
	Entity          entity.ID  `json:"entity"`
	Score           int        `json:"score"` // 0-100
	ViolationsCount int        `json:"violations_count"`
	LastViolationAt *time.Time `json:"last_violation_at,omitempty"`
	Restricted      bool       `json:"restricted"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TrustConfig configures trust scoring.
type TrustConfig struct {
	// Decrement is subtracted per penalized violation.
	Decrement int `koanf:"decrement" json:"decrement" validate:"gte=0,lte=100"`

	// Recovery is added to every score each RecoveryInterval.
	Recovery         int           `koanf:"recovery" json:"recovery" validate:"gte=0,lte=100"`
	RecoveryInterval time.Duration `koanf:"recovery_interval" json:"recovery_interval"`

	// Threshold is the score below which an entity is restricted.
	Threshold int `koanf:"threshold" json:"threshold" validate:"gte=0,lte=100"`
}

// DefaultTrustConfig returns sensible defaults.
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		Decrement:        10,
		Recovery:         1,
		RecoveryInterval: time.Hour,
		Threshold:        50,
	}
}

// EscalationFunc is called once when an entity crosses below the
// restriction threshold.
type EscalationFunc func(score TrustScore)

// TrustScores keeps per-entity trust scores in memory.
type TrustScores struct {
	mu       sync.RWMutex
	cfg      TrustConfig
	scores   map[entity.ID]*TrustScore
	escalate EscalationFunc
	now      func() time.Time
}

// NewTrustScores creates an empty score table. escalate may be nil.
func NewTrustScores(cfg TrustConfig, escalate EscalationFunc) *TrustScores {
	return &TrustScores{
		cfg:      cfg,
		scores:   make(map[entity.ID]*TrustScore),
		escalate: escalate,
		now:      time.Now,
	}
}

// Get returns the entity's score. Unknown entities have full trust.
func (t *TrustScores) Get(id entity.ID) TrustScore {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.scores[id]; ok {
		return *s
	}
	return TrustScore{Entity: id, Score: MaxTrustScore}
}

// Decrement lowers the entity's score by the configured decrement and
// returns the new score.
func (t *TrustScores) Decrement(id entity.ID) TrustScore {
	t.mu.Lock()
	s, ok := t.scores[id]
	if !ok {
		s = &TrustScore{Entity: id, Score: MaxTrustScore}
		t.scores[id] = s
	}
	now := t.now()
	s.Score -= t.cfg.Decrement
	if s.Score < 0 {
		s.Score = 0
	}
	s.ViolationsCount++
	s.LastViolationAt = &now
	s.UpdatedAt = now

	crossed := !s.Restricted && s.Score < t.cfg.Threshold
	if crossed {
		s.Restricted = true
	}
	snapshot := *s
	escalate := t.escalate
	t.mu.Unlock()

	if crossed && escalate != nil {
		escalate(snapshot)
	}
	return snapshot
}

// Recover raises every score by the configured recovery, lifting the
// restriction of entities back at or above the threshold. Entities back at
// full trust are dropped.
func (t *TrustScores) Recover() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	recovered := 0
	for id, s := range t.scores {
		s.Score += t.cfg.Recovery
		if s.Score >= MaxTrustScore {
			delete(t.scores, id)
			recovered++
			continue
		}
		if s.Restricted && s.Score >= t.cfg.Threshold {
			s.Restricted = false
		}
		s.UpdatedAt = now
		recovered++
	}
	return recovered
}

// Low returns the entities below threshold, lowest first.
func (t *TrustScores) Low(threshold int) []TrustScore {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []TrustScore
	for _, s := range t.scores {
		if s.Score < threshold {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// RunRecovery recovers scores every interval until ctx is canceled.
func (t *TrustScores) RunRecovery(ctx context.Context) error {
	interval := t.cfg.RecoveryInterval
	if interval <= 0 || t.cfg.Recovery <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().Int("amount", t.cfg.Recovery).Str("interval", interval.String()).Msg("starting trust score recovery")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n := t.Recover()
			logging.Debug().Int("entities", n).Msg("trust score recovery completed")
		}
	}
}
