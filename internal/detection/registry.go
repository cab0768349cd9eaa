// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// Info describes a registered detection.
type Info struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	Checks  []string `json:"checks"`
	Config  any      `json:"config"`
}

// Registry holds every registered detection and the blueprints of the
// enabled ones, indexed by trigger type. It implements sequence.Source.
type Registry struct {
	mu         sync.RWMutex
	detections map[string]Detection
	order      []string
	blueprints map[entity.EventType][]*sequence.Blueprint
	logger     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		detections: make(map[string]Detection),
		blueprints: make(map[entity.EventType][]*sequence.Blueprint),
		logger:     logging.WithComponent("detection"),
	}
}

// Register configures d with raw (nil keeps defaults) and adds it. A
// duplicate ID, an invalid configuration or an invalid check blueprint
// rejects this detection only.
func (r *Registry) Register(d Detection, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.detections[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID())
	}
	if raw != nil {
		if err := d.Configure(raw); err != nil {
			return fmt.Errorf("detection %s: %w", d.ID(), err)
		}
	}
	for _, c := range d.Cycle().Checks() {
		if err := c.Blueprint().Validate(); err != nil {
			return fmt.Errorf("detection %s: %w", d.ID(), err)
		}
	}

	r.detections[d.ID()] = d
	r.order = append(r.order, d.ID())
	r.rebuildLocked()

	r.logger.Info().
		Str("detection", d.ID()).
		Int("checks", d.Cycle().Len(stage.KindCheck)).
		Int("heuristics", d.Cycle().Len(stage.KindHeuristic)).
		Int("penalties", d.Cycle().Len(stage.KindPenalty)).
		Msg("registered detection")
	return nil
}

// Get returns a detection by ID.
func (r *Registry) Get(id string) (Detection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detections[id]
	return d, ok
}

// List returns every detection in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		d := r.detections[id]
		info := Info{ID: d.ID(), Name: d.Name(), Enabled: d.Enabled(), Config: d.Config()}
		for _, c := range d.Cycle().Checks() {
			info.Checks = append(info.Checks, c.ID())
		}
		out = append(out, info)
	}
	return out
}

// Configure applies a new configuration section to one detection.
func (r *Registry) Configure(id string, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.detections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := d.Configure(raw); err != nil {
		return fmt.Errorf("detection %s: %w", id, err)
	}
	r.rebuildLocked()
	return nil
}

// SetEnabled enables or disables one detection.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.detections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.SetEnabled(enabled)
	r.rebuildLocked()
	r.logger.Info().Str("detection", id).Bool("enabled", enabled).Msg("detection toggled")
	return nil
}

// Blueprints implements sequence.Source.
func (r *Registry) Blueprints(trigger entity.EventType) []*sequence.Blueprint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blueprints[trigger]
}

// Triggers returns the trigger types at least one enabled check listens to.
func (r *Registry) Triggers() []entity.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.EventType, 0, len(r.blueprints))
	for t := range r.blueprints {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Complete runs the owning detection's stage cycle for a finished
// sequence. It is the sequence manager's completion hook.
func (r *Registry) Complete(s *sequence.Sequence, tick uint64) stage.Outcome {
	d, ok := r.Get(s.Blueprint().DetectionID)
	if !ok {
		return stage.Outcome{}
	}
	return d.Cycle().Run(stage.Context{
		Entity:  s.Entity(),
		Owner:   d,
		Summary: s.Summary(),
		Tick:    tick,
	})
}

// rebuildLocked rebuilds the trigger index from the enabled detections'
// current configuration. Blueprints that fail validation are skipped and
// logged.
func (r *Registry) rebuildLocked() {
	index := make(map[entity.EventType][]*sequence.Blueprint)
	for _, id := range r.order {
		d := r.detections[id]
		if !d.Enabled() {
			continue
		}
		for _, c := range d.Cycle().Checks() {
			bp := c.Blueprint()
			if err := bp.Validate(); err != nil {
				r.logger.Error().Err(err).Str("detection", id).Msg("skipping invalid check")
				continue
			}
			index[bp.Trigger] = append(index[bp.Trigger], bp)
		}
	}
	r.blueprints = index
}
