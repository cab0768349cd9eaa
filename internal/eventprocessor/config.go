// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package eventprocessor

import (
	"time"
)

// Bus drivers.
const (
	DriverChannel = "channel"
	DriverNATS    = "nats"
)

// Default topics.
const (
	TopicState   = "guardian.entity.state"
	TopicRemove  = "guardian.entity.remove"
	TopicTrigger = "guardian.entity.trigger"
	TopicReport  = "guardian.report"
	TopicCommand = "guardian.command.relocate"
)

// BusConfig configures the message bus carrying host input and Guardian
// output.
type BusConfig struct {
	// Driver is "channel" for the in-process bus or "nats".
	Driver string `koanf:"driver" json:"driver" validate:"oneof=channel nats"`

	// URL is the NATS server URL. Ignored when Embedded is set.
	URL string `koanf:"url" json:"url"`

	// Embedded starts an in-process NATS server and connects to it.
	Embedded     bool   `koanf:"embedded" json:"embedded"`
	EmbeddedHost string `koanf:"embedded_host" json:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" json:"embedded_port" validate:"gte=-1,lte=65535"`

	// QueueGroup load-balances trigger handling across instances.
	QueueGroup       string `koanf:"queue_group" json:"queue_group"`
	SubscribersCount int    `koanf:"subscribers_count" json:"subscribers_count" validate:"gte=1"`

	// BufferSize is the output buffer of the in-process bus.
	BufferSize int64 `koanf:"buffer_size" json:"buffer_size" validate:"gte=0"`

	MaxReconnects int           `koanf:"max_reconnects" json:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" json:"reconnect_wait"`

	StateTopic   string `koanf:"state_topic" json:"state_topic" validate:"required"`
	RemoveTopic  string `koanf:"remove_topic" json:"remove_topic" validate:"required"`
	TriggerTopic string `koanf:"trigger_topic" json:"trigger_topic" validate:"required"`
	ReportTopic  string `koanf:"report_topic" json:"report_topic" validate:"required"`
	CommandTopic string `koanf:"command_topic" json:"command_topic" validate:"required"`

	Router RouterConfig `koanf:"router" json:"router"`
}

// DefaultBusConfig returns an in-process bus.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Driver:           DriverChannel,
		URL:              "nats://127.0.0.1:4222",
		EmbeddedHost:     "127.0.0.1",
		EmbeddedPort:     4222,
		QueueGroup:       "guardian",
		SubscribersCount: 1,
		BufferSize:       1024,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StateTopic:       TopicState,
		RemoveTopic:      TopicRemove,
		TriggerTopic:     TopicTrigger,
		ReportTopic:      TopicReport,
		CommandTopic:     TopicCommand,
		Router:           DefaultRouterConfig(),
	}
}

// RouterConfig configures the inbound message router.
type RouterConfig struct {
	CloseTimeout time.Duration `koanf:"close_timeout" json:"close_timeout"`

	// Retry applies to messages the pipeline could not accept, such as a
	// full inbound queue. Malformed messages are never retried.
	RetryMaxRetries      int           `koanf:"retry_max_retries" json:"retry_max_retries" validate:"gte=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval" json:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval" json:"retry_max_interval"`

	// DeduplicationTTL drops triggers whose event id was already seen.
	// Zero disables deduplication.
	DeduplicationTTL time.Duration `koanf:"deduplication_ttl" json:"deduplication_ttl"`
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     time.Second,
		DeduplicationTTL:     time.Minute,
	}
}
