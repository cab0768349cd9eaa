// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package report defines the verdict produced by one finished sequence and
// the Summary that carries it through the stage cycle.
package report

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

// Report is the pass/fail verdict of one evaluation. It is immutable once
// built; accessors return copies of slice and map fields.
type Report struct {
	id          string
	entity      entity.ID
	checkID     string
	detectionID string
	kind        string
	violation   bool
	information []string
	initial     entity.Vector3
	final       entity.Vector3
	severity    float64
	evidence    map[string]float64
	createdAt   time.Time
}

func (r *Report) ID() string                      { return r.id }
func (r *Report) Entity() entity.ID               { return r.entity }
func (r *Report) CheckID() string                 { return r.checkID }
func (r *Report) DetectionID() string             { return r.detectionID }
func (r *Report) Type() string                    { return r.kind }
func (r *Report) Violation() bool                 { return r.violation }
func (r *Report) InitialLocation() entity.Vector3 { return r.initial }
func (r *Report) FinalLocation() entity.Vector3   { return r.final }
func (r *Report) Severity() float64               { return r.severity }
func (r *Report) CreatedAt() time.Time            { return r.createdAt }

// Information returns the ordered human-readable evidence lines.
func (r *Report) Information() []string {
	return slices.Clone(r.information)
}

// Evidence returns the numeric evidence values keyed by name.
func (r *Report) Evidence() map[string]float64 {
	return maps.Clone(r.evidence)
}

// String implements fmt.Stringer.
func (r *Report) String() string {
	verdict := "pass"
	if r.violation {
		verdict = "fail"
	}
	return fmt.Sprintf("%s[%s] %s severity=%.4f", r.kind, r.entity, verdict, r.severity)
}

// Record is the serializable form of a Report.
type Record struct {
	ID              string             `json:"id"`
	Entity          entity.ID          `json:"entity"`
	CheckID         string             `json:"check_id"`
	DetectionID     string             `json:"detection_id"`
	Type            string             `json:"type"`
	Violation       bool               `json:"violation"`
	Information     []string           `json:"information"`
	InitialLocation entity.Vector3     `json:"initial_location"`
	FinalLocation   entity.Vector3     `json:"final_location"`
	Severity        float64            `json:"severity"`
	Evidence        map[string]float64 `json:"evidence,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Record returns the serializable form of the report.
func (r *Report) Record() Record {
	return Record{
		ID:              r.id,
		Entity:          r.entity,
		CheckID:         r.checkID,
		DetectionID:     r.detectionID,
		Type:            r.kind,
		Violation:       r.violation,
		Information:     r.Information(),
		InitialLocation: r.initial,
		FinalLocation:   r.final,
		Severity:        r.severity,
		Evidence:        r.Evidence(),
		CreatedAt:       r.createdAt,
	}
}

// Builder accumulates report fields. The zero value is not usable; start
// with New.
type Builder struct {
	r Report
}

// New starts a report of the given type.
func New(kind string) *Builder {
	return &Builder{r: Report{kind: kind}}
}

// Entity sets the entity the report is about.
func (b *Builder) Entity(id entity.ID) *Builder {
	b.r.entity = id
	return b
}

// Provenance sets the check and detection that produced the report.
func (b *Builder) Provenance(detectionID, checkID string) *Builder {
	b.r.detectionID = detectionID
	b.r.checkID = checkID
	return b
}

// Violation marks the report as failed.
func (b *Builder) Violation(v bool) *Builder {
	b.r.violation = v
	return b
}

// Information appends human-readable evidence lines.
func (b *Builder) Information(lines ...string) *Builder {
	b.r.information = append(b.r.information, lines...)
	return b
}

// Informationf appends one formatted evidence line.
func (b *Builder) Informationf(format string, args ...any) *Builder {
	b.r.information = append(b.r.information, fmt.Sprintf(format, args...))
	return b
}

// Locations sets the initial and final locations.
func (b *Builder) Locations(initial, final entity.Vector3) *Builder {
	b.r.initial = initial
	b.r.final = final
	return b
}

// Severity sets the severity.
func (b *Builder) Severity(s float64) *Builder {
	b.r.severity = s
	return b
}

// Evidence records one numeric evidence value.
func (b *Builder) Evidence(name string, value float64) *Builder {
	if b.r.evidence == nil {
		b.r.evidence = make(map[string]float64)
	}
	b.r.evidence[name] = value
	return b
}

// At overrides the creation timestamp.
func (b *Builder) At(t time.Time) *Builder {
	b.r.createdAt = t
	return b
}

// Build freezes the report. The builder must not be reused.
func (b *Builder) Build() *Report {
	r := b.r
	if r.id == "" {
		r.id = uuid.NewString()
	}
	if r.createdAt.IsZero() {
		r.createdAt = time.Now()
	}
	r.information = slices.Clone(r.information)
	r.evidence = maps.Clone(r.evidence)
	return &r
}

// WithProvenance returns a copy of r stamped with the given entity and
// provenance. The sequence engine uses it so conditions need not repeat
// what the engine already knows.
func (r *Report) WithProvenance(id entity.ID, detectionID, checkID string) *Report {
	cp := *r
	if cp.entity == "" {
		cp.entity = id
	}
	if cp.detectionID == "" {
		cp.detectionID = detectionID
	}
	if cp.checkID == "" {
		cp.checkID = checkID
	}
	return &cp
}
