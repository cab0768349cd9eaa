// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Bus is a publisher/subscriber pair for one driver.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	cfg    BusConfig
	server *EmbeddedServer
	logger watermill.LoggerAdapter
}

// NewBus builds the bus selected by cfg.Driver. With Embedded set, an
// in-process NATS server is started first.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	b := &Bus{cfg: cfg, logger: logger}

	switch cfg.Driver {
	case DriverChannel, "":
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		b.Publisher = ch
		b.Subscriber = ch
		return b, nil

	case DriverNATS:
		url := cfg.URL
		if cfg.Embedded {
			srv, err := NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
			if err != nil {
				return nil, err
			}
			b.server = srv
			url = srv.ClientURL()
		}
		if err := b.connectNATS(url); err != nil {
			b.shutdownServer()
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
}

func (b *Bus) natsOptions() []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(b.cfg.MaxReconnects),
		natsgo.ReconnectWait(b.cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				b.logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// connectNATS uses core NATS. Host input is a live stream; replaying it
// after a restart would feed stale snapshots into the tick loop.
func (b *Bus) connectNATS(url string) error {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: b.natsOptions(),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, b.logger)
	if err != nil {
		return fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: b.cfg.QueueGroup,
		SubscribersCount: b.cfg.SubscribersCount,
		CloseTimeout:     b.cfg.Router.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      b.natsOptions(),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, b.logger)
	if err != nil {
		_ = pub.Close()
		return fmt.Errorf("create NATS subscriber: %w", err)
	}

	b.Publisher = pub
	b.Subscriber = sub
	return nil
}

// Config returns the bus configuration.
func (b *Bus) Config() BusConfig { return b.cfg }

// Embedded returns the embedded server, or nil.
func (b *Bus) Embedded() *EmbeddedServer { return b.server }

func (b *Bus) shutdownServer() {
	if b.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.server.Shutdown(ctx)
}

// Close closes the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	var errs []error
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if b.Subscriber != nil && any(b.Subscriber) != any(b.Publisher) {
		if err := b.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	b.shutdownServer()
	return errors.Join(errs...)
}
