// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/capture"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/sequence"
)

// Allowance is the derived maximum displacement for one sampling window,
// together with the factors it was built from.
type Allowance struct {
	Samples    int
	Control    float64
	Material   float64
	Effect     float64
	ClockTicks float64
	Allowed    float64
}

// HorizontalAllowance derives the maximum horizontal displacement for the
// window accumulated in c:
//
//	allowed = base * offset^(1/n) * material^(1/n) * max(0, 1+speed/n) * clockTicks
//
// where n is the number of position samples and clockTicks is the real time
// since the last action measured in ticks, never negative. The offsets are
// per-tick products, so their n-th root is the geometric mean modifier.
func HorizontalAllowance(c *capture.Container, base float64, lastAction, now time.Time, tickDuration time.Duration) (Allowance, error) {
	return allowance(c, capture.HorizontalOffset, capture.SpeedEffect, base, lastAction, now, tickDuration)
}

// VerticalAllowance is HorizontalAllowance over the lift accumulators.
func VerticalAllowance(c *capture.Container, base float64, lastAction, now time.Time, tickDuration time.Duration) (Allowance, error) {
	return allowance(c, capture.VerticalOffset, capture.LiftEffect, base, lastAction, now, tickDuration)
}

func allowance(c *capture.Container, offsetKey, effectKey *capture.Key[float64], base float64, lastAction, now time.Time, tickDuration time.Duration) (Allowance, error) {
	n, ok := capture.Get(c, capture.PositionTicks)
	if !ok || n <= 0 {
		return Allowance{}, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.PositionTicks)
	}
	offset, ok := capture.Get(c, offsetKey)
	if !ok {
		return Allowance{}, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, offsetKey)
	}
	if tickDuration <= 0 {
		return Allowance{}, fmt.Errorf("%w: non-positive tick duration", sequence.ErrMissingCapture)
	}

	inv := 1 / float64(n)
	a := Allowance{
		Samples:    n,
		Control:    math.Pow(offset, inv),
		Material:   math.Pow(capture.GetOr(c, capture.MaterialAmplifier, 1.0), inv),
		Effect:     math.Max(0, 1+capture.GetOr(c, effectKey, 0)*inv),
		ClockTicks: math.Max(0, float64(now.Sub(lastAction))/float64(tickDuration)),
	}
	a.Allowed = base * a.Control * a.Material * a.Effect * a.ClockTicks
	return a, nil
}

// RatioSeverity is (observed-allowed)/observed for a violation and 0
// otherwise. The result lies in [0,1).
func RatioSeverity(observed, allowed float64) float64 {
	if observed <= allowed || observed <= 0 {
		return 0
	}
	return (observed - allowed) / observed
}

// checkWindow applies the sampling window guards.
func checkWindow(c *capture.Container, w WindowConfig) (uint64, error) {
	initial, ok := capture.Get(c, capture.InitialStep)
	if !ok {
		return 0, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.InitialStep)
	}
	final, ok := capture.Get(c, capture.FinalStep)
	if !ok {
		return 0, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.FinalStep)
	}

	var window uint64
	if final > initial {
		window = final - initial
	}
	switch {
	case window < w.MinimumTickRange:
		return window, fmt.Errorf("%w: %d < %d", sequence.ErrWindowOverload, window, w.MinimumTickRange)
	case window > w.MaximumTickRange:
		return window, fmt.Errorf("%w: %d > %d", sequence.ErrWindowStale, window, w.MaximumTickRange)
	}
	return window, nil
}

func positions(c *capture.Container) (initial, final entity.Vector3, err error) {
	initial, ok := capture.Get(c, capture.InitialPosition)
	if !ok {
		return initial, final, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.InitialPosition)
	}
	final, ok = capture.Get(c, capture.FinalPosition)
	if !ok {
		return initial, final, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.FinalPosition)
	}
	return initial, final, nil
}

func notInVehicle(snap entity.Snapshot, _ entity.Event) bool {
	return !snap.InVehicle
}

// SpeedCheck is the horizontal or vertical displacement check.
type SpeedCheck struct {
	id       string
	vertical bool
	owner    *MovementSpeedDetection
}

func (c *SpeedCheck) ID() string { return c.id }

// Blueprint builds the check's blueprint from the owner's current
// configuration.
func (c *SpeedCheck) Blueprint() *sequence.Blueprint {
	cfg := c.owner.config()
	return &sequence.Blueprint{
		DetectionID: c.owner.ID(),
		CheckID:     c.id,
		Trigger:     entity.EventMove,
		Captures: []capture.Capture{
			capture.NewControlCapture(cfg.Controls),
			capture.NewMaterialCapture(cfg.Materials, c.owner.world),
			capture.NewEffectCapture(cfg.Effects),
			capture.NewPositionCapture(),
		},
		Delay:     cfg.Window.Delay,
		Expire:    cfg.Window.Expire,
		Filter:    notInVehicle,
		Condition: c.condition(cfg),
	}
}

func (c *SpeedCheck) condition(cfg SpeedConfig) sequence.Condition {
	return func(ev sequence.Evaluation) (*report.Report, error) {
		if ev.Snapshot.InVehicle {
			return nil, sequence.ErrExcluded
		}
		window, err := checkWindow(ev.Container, cfg.Window)
		if err != nil {
			return nil, err
		}
		initial, final, err := positions(ev.Container)
		if err != nil {
			return nil, err
		}

		kind := TypeHorizontalSpeed
		var a Allowance
		var observed float64
		if c.vertical {
			kind = TypeVerticalSpeed
			a, err = VerticalAllowance(ev.Container, cfg.VerticalBase, ev.LastAction, ev.Now, ev.TickDuration)
			observed = math.Max(0, final.Y-initial.Y)
		} else {
			a, err = HorizontalAllowance(ev.Container, cfg.HorizontalBase, ev.LastAction, ev.Now, ev.TickDuration)
			observed = initial.HorizontalDistance(final)
		}
		if err != nil {
			return nil, err
		}

		violation := observed > a.Allowed
		b := report.New(kind).
			Violation(violation).
			Locations(initial, final).
			Severity(RatioSeverity(observed, a.Allowed)).
			Evidence("observed", observed).
			Evidence("allowed", a.Allowed).
			Evidence("control", a.Control).
			Evidence("material", a.Material).
			Evidence("effect", a.Effect).
			Evidence("clock_ticks", a.ClockTicks).
			Evidence("window", float64(window))
		if violation {
			b.Informationf("Moved %.4f blocks, allowed %.4f over %d samples.", observed, a.Allowed, a.Samples).
				Informationf("Modifiers: control %.4f, material %.4f, effect %.4f.", a.Control, a.Material, a.Effect)
		}
		return b.Build(), nil
	}
}

// InvalidControlCheck flags impossible simultaneous control states.
type InvalidControlCheck struct {
	owner *InvalidMovementDetection
}

func (c *InvalidControlCheck) ID() string { return InvalidControlCheckID }

// Blueprint builds the check's blueprint from the owner's current
// configuration.
func (c *InvalidControlCheck) Blueprint() *sequence.Blueprint {
	cfg := c.owner.config()
	return &sequence.Blueprint{
		DetectionID: c.owner.ID(),
		CheckID:     InvalidControlCheckID,
		Trigger:     entity.EventMove,
		Captures: []capture.Capture{
			capture.NewInvalidControlCapture(),
			capture.NewPositionCapture(),
		},
		Delay:     cfg.Window.Delay,
		Expire:    cfg.Window.Expire,
		Condition: invalidControlCondition(cfg.Window),
	}
}

// invalidControlCondition fails with severity 1.0 when any impossible
// combination was sampled inside the window's tick range.
func invalidControlCondition(w WindowConfig) sequence.Condition {
	return func(ev sequence.Evaluation) (*report.Report, error) {
		if _, err := checkWindow(ev.Container, w); err != nil {
			return nil, err
		}
		initial, final, err := positions(ev.Container)
		if err != nil {
			return nil, err
		}
		set := capture.GetOr(ev.Container, capture.InvalidControls, nil)

		b := report.New(TypeInvalidControl).Locations(initial, final)
		if len(set) == 0 {
			return b.Violation(false).Build(), nil
		}
		labels := set.Sorted()
		b.Violation(true).
			Severity(1.0).
			Informationf("Reported impossible controls together: %s.", strings.Join(labels, ", ")).
			Evidence("invalid_controls", float64(len(labels)))
		return b.Build(), nil
	}
}

// ReachCheck compares interaction distance to the configured intercept
// and to the first obstruction along the line of sight.
type ReachCheck struct {
	id      string
	trigger entity.EventType
	owner   *ReachDetection
}

func (c *ReachCheck) ID() string { return c.id }

// Blueprint builds the check's blueprint from the owner's current
// configuration. Reach evaluates on the tick after the interaction.
func (c *ReachCheck) Blueprint() *sequence.Blueprint {
	cfg := c.owner.config()
	intercept := cfg.BlockIntercept
	kind := TypeBlockReach
	if c.trigger == entity.EventInteractEntity {
		intercept = cfg.EntityIntercept
		kind = TypeEntityReach
	}
	return &sequence.Blueprint{
		DetectionID: c.owner.ID(),
		CheckID:     c.id,
		Trigger:     c.trigger,
		Captures:    []capture.Capture{capture.NewPositionCapture()},
		Expire:      cfg.Expire,
		Filter: func(_ entity.Snapshot, ev entity.Event) bool {
			return ev.Target != nil
		},
		Condition: ReachCondition(kind, intercept, cfg.ObstructionTolerance, c.owner.world),
	}
}

// lineOfSight returns the distance to the first obstruction between origin
// and target. A host-supplied obstruction on the trigger wins over a world
// ray cast.
func lineOfSight(trigger entity.Event, world entity.World, origin, target entity.Vector3, d float64) (float64, bool) {
	if trigger.Obstruction != nil {
		return *trigger.Obstruction, true
	}
	if world == nil || d <= 0 {
		return 0, false
	}
	return world.RayCast(origin, target.Sub(origin).Normalize(), d)
}

// ReachCondition builds the reach condition. The origin is the position
// captured at the interaction raised by the entity's eye height. The check
// fails when the squared distance to the target exceeds intercept², or
// when the trigger or world reports an obstruction closer than
// distance-tolerance. The report's initial location is the foot position so
// a reset returns the entity to where it stood. Severity is
// distance/intercept and is unbounded above.
func ReachCondition(kind string, intercept, tolerance float64, world entity.World) sequence.Condition {
	return func(ev sequence.Evaluation) (*report.Report, error) {
		if ev.Trigger.Target == nil {
			return nil, fmt.Errorf("%w: interaction target", sequence.ErrMissingCapture)
		}
		initial, ok := capture.Get(ev.Container, capture.InitialPosition)
		if !ok {
			return nil, fmt.Errorf("%w: %s", sequence.ErrMissingCapture, capture.InitialPosition)
		}

		target := *ev.Trigger.Target
		origin := initial.Add(entity.Vector3{Y: ev.Snapshot.EyeHeight})
		d2 := origin.DistanceSquared(target)
		d := math.Sqrt(d2)

		b := report.New(kind).
			Locations(initial, target).
			Evidence("distance", d).
			Evidence("intercept", intercept).
			Evidence("eye_height", ev.Snapshot.EyeHeight)

		violation := false
		if d2 > intercept*intercept {
			violation = true
			b.Informationf("Interacted %.4f blocks away, limit %.4f.", d, intercept)
		}
		if hit, blocked := lineOfSight(ev.Trigger, world, origin, target, d); blocked {
			b.Evidence("obstruction", hit)
			if hit < d-tolerance {
				violation = true
				b.Informationf("Line of sight obstructed at %.4f of %.4f blocks.", hit, d)
			}
		}

		severity := 0.0
		if intercept > 0 {
			severity = d / intercept
		}
		return b.Violation(violation).Severity(severity).Build(), nil
	}
}
