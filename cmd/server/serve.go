// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/api"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/audit"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/config"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/eventprocessor"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/supervisor"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/supervisor/services"
	ws "github.com/vectrixdevelops/guardiansponge-sub001/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection pipeline and its services (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		logging.Init(cfg.Logging)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, path)
	},
}

// node holds every long-lived component of a running instance.
type node struct {
	pipeline *pipeline.Pipeline
	hub      *ws.Hub
	bus      *eventprocessor.Bus
	outbox   *eventprocessor.Outbox
	journal  *journal.Journal
	trust    *detection.TrustScores
	audit    *audit.Logger
	server   *http.Server
}

func (n *node) close() {
	if n.bus != nil {
		if err := n.bus.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing message bus")
		}
	}
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing journal")
		}
	}
}

// build creates every component. Nothing runs until the supervisor tree
// is served.
func build(cfg *config.Config) (*node, error) {
	n := &node{hub: ws.NewHub()}

	bus, err := eventprocessor.NewBus(cfg.Bus, logging.NewWatermillAdapter(logging.WithComponent("bus")))
	if err != nil {
		return nil, fmt.Errorf("message bus: %w", err)
	}
	n.bus = bus
	n.outbox = eventprocessor.NewOutbox(bus.Publisher, cfg.Pipeline.QueueSize,
		logging.NewWatermillAdapter(logging.WithComponent("outbox")))

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			n.close()
			return nil, fmt.Errorf("violation journal: %w", err)
		}
		n.journal = j
	}

	heuristic := detection.NewDistributionHeuristic(cfg.Distribution)
	p, err := pipeline.New(cfg.Pipeline, pipeline.WithCleaners(heuristic))
	if err != nil {
		n.close()
		return nil, err
	}
	n.pipeline = p
	if cfg.Audit.Enabled {
		n.audit = audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), cfg.Audit)
	}
	n.trust = detection.NewTrustScores(cfg.Trust, func(score detection.TrustScore) {
		logging.Warn().
			Str("entity", string(score.Entity)).
			Int("score", score.Score).
			Int("violations", score.ViolationsCount).
			Msg("entity trust below restriction threshold")
		n.hub.BroadcastJSON(ws.MessageTypeTrust, score)
	})

	deps := penaltyDeps{
		heuristic: heuristic,
		hub:       n.hub,
		mover:     eventprocessor.NewBusMover(n.outbox, cfg.Bus.CommandTopic),
		publisher: eventprocessor.NewReportPublisher(n.outbox, cfg.Bus.ReportTopic),
		trust:     n.trust,
		tickets:   p.Tickets(),
	}
	if n.journal != nil {
		deps.journal = n.journal
	}
	if err := registerDetections(p.Registry(), cfg, penaltyStages(cfg, deps)); err != nil {
		n.close()
		return nil, err
	}

	if cfg.Server.Enabled {
		opts := []api.HandlerOption{api.WithHub(n.hub, cfg.Server.AllowedOrigins)}
		if n.journal != nil {
			opts = append(opts, api.WithViolations(n.journal))
		}
		if n.audit != nil {
			opts = append(opts, api.WithAudit(n.audit))
		}
		router := api.NewRouter(api.NewHandler(p, opts...), api.RouterConfig{
			RateLimitRequests: cfg.Server.RateLimitReqs,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			Timeout:           cfg.Server.Timeout,
		})
		n.server = &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router.Setup(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return n, nil
}

// supervise adds every component to a new supervisor tree.
func (n *node) supervise(cfg *config.Config) (*supervisor.SupervisorTree, error) {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
		return nil, err
	}

	tree.AddDetectionService(services.NewPipelineService(n.pipeline))
	if n.journal != nil {
		tree.AddDetectionService(services.NewJournalService(n.journal))
	}

	routerLogger := logging.NewWatermillAdapter(logging.WithComponent("bus-router"))
	tree.AddMessagingService(services.NewBusRouterService(func() (services.BusRouter, error) {
		r, err := eventprocessor.NewRouter(n.bus, n.pipeline, routerLogger)
		if err != nil {
			return nil, err
		}
		return r, nil
	}))
	tree.AddMessagingService(services.NewOutboxService(n.outbox))
	tree.AddMessagingService(services.NewWebSocketHubService(n.hub))
	tree.AddMessagingService(services.NewRelayService(ws.NewRelay(n.hub, n.bus.Subscriber, cfg.Bus.ReportTopic)))
	tree.AddMessagingService(services.NewTrustRecoveryService(n.trust))
	if n.audit != nil {
		tree.AddMessagingService(services.NewAuditService(n.audit))
	}

	if n.server != nil {
		tree.AddAPIService(services.NewHTTPServerService(n.server, cfg.Server.ShutdownTimeout))
	}
	return tree, nil
}

func serve(ctx context.Context, cfg *config.Config, path string) error {
	n, err := build(cfg)
	if err != nil {
		return err
	}
	defer n.close()

	tree, err := n.supervise(cfg)
	if err != nil {
		return err
	}

	if path != "" {
		watchDetections(ctx, path, n.pipeline, n.audit)
	}

	logging.Info().
		Str("config", path).
		Str("bus_driver", cfg.Bus.Driver).
		Bool("journal", n.journal != nil).
		Bool("http", n.server != nil).
		Str("addr", cfg.Server.Addr()).
		Dur("tick_rate", cfg.Pipeline.TickRate).
		Int("detections", len(n.pipeline.Detections())).
		Msg("starting guardian")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop before shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("guardian stopped")
	return nil
}

// watchDetections reapplies detection sections when the config file
// changes. Other sections need a restart.
func watchDetections(ctx context.Context, path string, p *pipeline.Pipeline, trail *audit.Logger) {
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.LoadFile(path)
		if err == nil {
			err = applyDetections(ctx, p, cfg)
		}
		metrics.RecordConfigReload(err)
		outcome, msg := audit.OutcomeOf(err)
		trail.Log(&audit.Event{
			Type:        audit.EventTypeConfigReloaded,
			Outcome:     outcome,
			Actor:       audit.Actor{Type: audit.ActorSystem},
			Target:      path,
			Description: "detection configuration reloaded from file",
			Error:       msg,
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("config reload failed")
			return
		}
		logging.Info().Str("path", path).Msg("detection configuration reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("config hot reload disabled")
	}
}
