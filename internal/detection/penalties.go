// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/stage"
)

// Penalty names. They double as the keys of PenaltyConfig.
const (
	PenaltyLog     = "log"
	PenaltyNotify  = "notify"
	PenaltyReset   = "reset"
	PenaltyJournal = "journal"
	PenaltyPublish = "publish"
	PenaltyTrust   = "trust"
)

// DefaultNotifyTimeout bounds one notifier delivery.
const DefaultNotifyTimeout = 10 * time.Second

// DefaultResetBypassTicks suppresses movement checks while a relocation
// settles.
const DefaultResetBypassTicks = 20

// gate returns stage.ErrSkipped unless the summary's severity reaches the
// owner's threshold for the named penalty. Owners without thresholds let
// every violation through.
func gate(ctx stage.Context, penalty string) (float64, error) {
	sev, violation, ok := ctx.Summary.Severity()
	if !ok || !violation {
		return sev, stage.ErrSkipped
	}
	if src, isSource := ctx.Owner.(ThresholdSource); isSource {
		if threshold, found := src.PenaltyThreshold(penalty); found && sev < threshold {
			return sev, stage.ErrSkipped
		}
	}
	return sev, nil
}

// LogPenalty writes one structured warning per violation.
type LogPenalty struct {
	logger zerolog.Logger
}

// NewLogPenalty creates a log penalty.
func NewLogPenalty() *LogPenalty {
	return &LogPenalty{logger: logging.WithComponent("penalty")}
}

func (p *LogPenalty) Name() string { return PenaltyLog }

// Apply implements stage.Penalty.
func (p *LogPenalty) Apply(ctx stage.Context) error {
	sev, err := gate(ctx, PenaltyLog)
	if err != nil {
		return err
	}
	r := ctx.Report()
	log := logging.ForSequence(p.logger, string(ctx.Entity), r.CheckID(), ctx.Tick)
	ev := log.Warn().
		Str("detection", r.DetectionID()).
		Str("type", r.Type()).
		Float64("severity", sev).
		Str("level", string(SeverityFor(sev))).
		Stringer("from", r.InitialLocation()).
		Stringer("to", r.FinalLocation())
	for k, v := range r.Evidence() {
		ev = ev.Float64(k, v)
	}
	ev.Strs("information", r.Information()).Msg("violation")
	return nil
}

// NotifyPenalty broadcasts the violation to live subscribers and fans it
// out to the enabled notifiers. Deliveries run asynchronously so a slow
// endpoint never holds the tick.
type NotifyPenalty struct {
	broadcaster Broadcaster
	notifiers   []Notifier
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewNotifyPenalty creates a notify penalty. broadcaster may be nil.
func NewNotifyPenalty(broadcaster Broadcaster, notifiers ...Notifier) *NotifyPenalty {
	return &NotifyPenalty{
		broadcaster: broadcaster,
		notifiers:   notifiers,
		timeout:     DefaultNotifyTimeout,
		logger:      logging.WithComponent("notify"),
	}
}

func (p *NotifyPenalty) Name() string { return PenaltyNotify }

// Apply implements stage.Penalty.
func (p *NotifyPenalty) Apply(ctx stage.Context) error {
	if _, err := gate(ctx, PenaltyNotify); err != nil {
		return err
	}
	payload := NewPayload(ctx)
	if p.broadcaster != nil {
		p.broadcaster.BroadcastJSON("violation", payload)
	}
	for _, n := range p.notifiers {
		if !n.Enabled() {
			continue
		}
		go func(n Notifier) {
			sendCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
			defer cancel()
			err := n.Send(sendCtx, payload)
			metrics.RecordNotification(n.Name(), err)
			if err != nil {
				p.logger.Warn().Err(err).Str("notifier", n.Name()).Str("entity", string(ctx.Entity)).Msg("notification failed")
			}
		}(n)
	}
	return nil
}

// ResetPenalty moves the entity back to where the offending window began
// and opens a timed ticket so the relocation itself is not judged.
type ResetPenalty struct {
	mover      entity.Mover
	tickets    *bypass.Service
	bypassFor  uint64
	suppressed []entity.EventType
}

// NewResetPenalty creates a reset penalty. tickets may be nil.
func NewResetPenalty(mover entity.Mover, tickets *bypass.Service, bypassTicks uint64) *ResetPenalty {
	return &ResetPenalty{
		mover:      mover,
		tickets:    tickets,
		bypassFor:  bypassTicks,
		suppressed: []entity.EventType{entity.EventMove},
	}
}

func (p *ResetPenalty) Name() string { return PenaltyReset }

// Apply implements stage.Penalty.
func (p *ResetPenalty) Apply(ctx stage.Context) error {
	if _, err := gate(ctx, PenaltyReset); err != nil {
		return err
	}
	if p.mover == nil {
		return stage.ErrSkipped
	}
	if p.tickets != nil && p.bypassFor > 0 {
		p.tickets.RequestTimedTicket(ctx.Entity, p.suppressed, PenaltyReset, p.bypassFor)
	}
	target := ctx.Report().InitialLocation()
	if err := p.mover.Relocate(ctx.Entity, target); err != nil {
		return fmt.Errorf("relocate to %s: %w", target, err)
	}
	return nil
}

// JournalPenalty persists the report.
type JournalPenalty struct {
	journal Journal
}

// NewJournalPenalty creates a journal penalty.
func NewJournalPenalty(j Journal) *JournalPenalty {
	return &JournalPenalty{journal: j}
}

func (p *JournalPenalty) Name() string { return PenaltyJournal }

// Apply implements stage.Penalty.
func (p *JournalPenalty) Apply(ctx stage.Context) error {
	if _, err := gate(ctx, PenaltyJournal); err != nil {
		return err
	}
	return p.journal.Append(ctx.Report())
}

// PublishPenalty hands the report to the message bus.
type PublishPenalty struct {
	publisher Publisher
}

// NewPublishPenalty creates a publish penalty.
func NewPublishPenalty(pub Publisher) *PublishPenalty {
	return &PublishPenalty{publisher: pub}
}

func (p *PublishPenalty) Name() string { return PenaltyPublish }

// Apply implements stage.Penalty.
func (p *PublishPenalty) Apply(ctx stage.Context) error {
	if _, err := gate(ctx, PenaltyPublish); err != nil {
		return err
	}
	return p.publisher.PublishReport(ctx.Report())
}

// TrustPenalty lowers the entity's trust score.
type TrustPenalty struct {
	scores *TrustScores
}

// NewTrustPenalty creates a trust penalty.
func NewTrustPenalty(scores *TrustScores) *TrustPenalty {
	return &TrustPenalty{scores: scores}
}

func (p *TrustPenalty) Name() string { return PenaltyTrust }

// Apply implements stage.Penalty.
func (p *TrustPenalty) Apply(ctx stage.Context) error {
	if _, err := gate(ctx, PenaltyTrust); err != nil {
		return err
	}
	p.scores.Decrement(ctx.Entity)
	return nil
}
