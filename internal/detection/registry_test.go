// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"errors"
	"testing"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range []Detection{
		NewMovementSpeedDetection(nil),
		NewInvalidMovementDetection(),
		NewReachDetection(nil),
	} {
		if err := r.Register(d, nil); err != nil {
			t.Fatalf("Register(%s) = %v", d.ID(), err)
		}
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t)

	if got := len(r.Blueprints(entity.EventMove)); got != 3 {
		t.Errorf("move blueprints = %d, want 3", got)
	}
	if got := len(r.Blueprints(entity.EventInteractBlock)); got != 1 {
		t.Errorf("block blueprints = %d, want 1", got)
	}
	if got := len(r.Blueprints(entity.EventTeleport)); got != 0 {
		t.Errorf("teleport blueprints = %d, want 0", got)
	}

	err := r.Register(NewReachDetection(nil), nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Register() = %v, want ErrDuplicate", err)
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() has %d entries, want 3", len(list))
	}
	if list[0].ID != MovementSpeedID || list[2].ID != ReachID {
		t.Errorf("List() order = %s..%s, want registration order", list[0].ID, list[2].ID)
	}
	if len(list[0].Checks) != 2 || list[0].Checks[0] != HorizontalSpeedCheckID {
		t.Errorf("speed checks = %v", list[0].Checks)
	}
}

func TestRegistry_RegisterInvalidConfig(t *testing.T) {
	r := NewRegistry()
	err := r.Register(NewMovementSpeedDetection(nil), []byte(`{"horizontal_base":-1}`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Register() = %v, want ErrInvalidConfig", err)
	}
	if len(r.List()) != 0 {
		t.Error("rejected detection was registered")
	}
}

func TestRegistry_Triggers(t *testing.T) {
	r := newTestRegistry(t)
	got := r.Triggers()
	want := []entity.EventType{entity.EventInteractBlock, entity.EventInteractEntity, entity.EventMove}
	if len(got) != len(want) {
		t.Fatalf("Triggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Triggers()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SetEnabled(MovementSpeedID, false); err != nil {
		t.Fatalf("SetEnabled() = %v", err)
	}
	bps := r.Blueprints(entity.EventMove)
	if len(bps) != 1 || bps[0].CheckID != InvalidControlCheckID {
		t.Errorf("move blueprints after disable = %d, want only invalid control", len(bps))
	}

	if err := r.SetEnabled(MovementSpeedID, true); err != nil {
		t.Fatalf("SetEnabled() = %v", err)
	}
	if got := len(r.Blueprints(entity.EventMove)); got != 3 {
		t.Errorf("move blueprints after enable = %d, want 3", got)
	}

	if err := r.SetEnabled("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEnabled(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Configure(t *testing.T) {
	r := newTestRegistry(t)
	before := r.Blueprints(entity.EventMove)[0]

	if err := r.Configure(MovementSpeedID, []byte(`{"window":{"delay":20,"expire":30,"minimum_tick_range":15,"maximum_tick_range":25}}`)); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	after := r.Blueprints(entity.EventMove)[0]
	if after.Delay != 20 {
		t.Errorf("Delay = %d, want 20", after.Delay)
	}
	if before.Delay != 40 {
		t.Errorf("existing blueprint changed: Delay = %d, want 40", before.Delay)
	}

	if err := r.Configure(MovementSpeedID, []byte(`{"vertical_base":0}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid Configure() = %v, want ErrInvalidConfig", err)
	}
	if got := r.Blueprints(entity.EventMove)[0].Delay; got != 20 {
		t.Errorf("rejected configuration applied: Delay = %d, want 20", got)
	}

	if err := r.Configure("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Configure(missing) = %v, want ErrNotFound", err)
	}
}
