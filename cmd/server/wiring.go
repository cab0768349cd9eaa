// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/config"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// penaltyDeps are the collaborators of the shared penalty chain. Nil
// members leave their penalty out.
type penaltyDeps struct {
	heuristic   *detection.DistributionHeuristic
	hub         detection.Broadcaster
	mover       entity.Mover
	publisher   detection.Publisher
	journal     detection.Journal
	trust       *detection.TrustScores
	tickets     *bypass.Service
	bypassTicks uint64
}

// penaltyStages builds the heuristic and penalty stages appended to every
// detection. Penalties run in order; each applies only above its own
// per-detection severity threshold.
func penaltyStages(cfg *config.Config, deps penaltyDeps) []stage.Stage {
	var stages []stage.Stage
	if deps.heuristic != nil {
		stages = append(stages, stage.HeuristicStage(deps.heuristic))
	}
	stages = append(stages, stage.PenaltyStage(detection.NewLogPenalty()))

	notifiers := notifiersFor(cfg.Notifiers)
	if deps.hub != nil || len(notifiers) > 0 {
		stages = append(stages, stage.PenaltyStage(detection.NewNotifyPenalty(deps.hub, notifiers...)))
	}
	if deps.trust != nil {
		stages = append(stages, stage.PenaltyStage(detection.NewTrustPenalty(deps.trust)))
	}
	if deps.journal != nil {
		stages = append(stages, stage.PenaltyStage(detection.NewJournalPenalty(deps.journal)))
	}
	if deps.publisher != nil {
		stages = append(stages, stage.PenaltyStage(detection.NewPublishPenalty(deps.publisher)))
	}
	if deps.mover != nil {
		ticks := deps.bypassTicks
		if ticks == 0 {
			ticks = detection.DefaultResetBypassTicks
		}
		stages = append(stages, stage.PenaltyStage(detection.NewResetPenalty(deps.mover, deps.tickets, ticks)))
	}
	return stages
}

func notifiersFor(cfg config.NotifiersConfig) []detection.Notifier {
	var notifiers []detection.Notifier
	if cfg.Webhook.Enabled {
		notifiers = append(notifiers, detection.NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Discord.Enabled {
		notifiers = append(notifiers, detection.NewDiscordNotifier(cfg.Discord))
	}
	return notifiers
}

// newDetections returns every built-in detection with stages appended.
// The host world is remote: media come from the snapshot and reach
// obstructions from the interact event's obstruction distance.
func newDetections(stages []stage.Stage) []detection.Detection {
	return []detection.Detection{
		detection.NewMovementSpeedDetection(nil, stages...),
		detection.NewInvalidMovementDetection(stages...),
		detection.NewReachDetection(nil, stages...),
	}
}

// registerDetections registers the built-in detections with their
// configuration sections. A section naming an unknown detection is an
// error.
func registerDetections(reg *detection.Registry, cfg *config.Config, stages []stage.Stage) error {
	known := make(map[string]bool)
	for _, d := range newDetections(stages) {
		known[d.ID()] = true

		raw, enabled, err := section(cfg, d.ID())
		if err != nil {
			return err
		}
		if err := reg.Register(d, raw); err != nil {
			return fmt.Errorf("register %s: %w", d.ID(), err)
		}
		if !enabled {
			if err := reg.SetEnabled(d.ID(), false); err != nil {
				return err
			}
		}
	}

	var unknown []string
	for id := range cfg.Detections {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown detections in configuration: %v", unknown)
	}
	return nil
}

// section returns a detection's section, or nil for defaults.
func section(cfg *config.Config, id string) (json.RawMessage, bool, error) {
	raw, enabled, err := cfg.DetectionSection(id)
	if errors.Is(err, config.ErrNoSection) {
		return nil, true, nil
	}
	return raw, enabled, err
}

// detectionController is the part of the pipeline a reload drives.
type detectionController interface {
	Detections() []detection.Info
	Configure(ctx context.Context, id string, raw json.RawMessage) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// applyDetections pushes every detection section of cfg to a running
// pipeline. A detection whose section was removed goes back to its
// defaults. Every detection is attempted; the errors are joined.
func applyDetections(ctx context.Context, p detectionController, cfg *config.Config) error {
	var errs []error
	for _, info := range p.Detections() {
		raw, enabled, err := section(cfg, info.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.Configure(ctx, info.ID, raw); err != nil {
			errs = append(errs, fmt.Errorf("configure %s: %w", info.ID, err))
			continue
		}
		if info.Enabled != enabled {
			if err := p.SetEnabled(ctx, info.ID, enabled); err != nil {
				errs = append(errs, fmt.Errorf("enable %s: %w", info.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}
