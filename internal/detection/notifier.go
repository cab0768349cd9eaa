// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/metrics"
)

// ErrNotifierOpen is returned while a notifier's circuit breaker is open.
var ErrNotifierOpen = errors.New("notifier circuit open")

// HTTPConfig is shared by the HTTP notifiers.
type HTTPConfig struct {
	URL     string            `koanf:"url" json:"url" validate:"omitempty,url"`
	Headers map[string]string `koanf:"headers" json:"headers,omitempty"`
	Enabled bool              `koanf:"enabled" json:"enabled"`

	// RateLimitMs is the minimum spacing between deliveries.
	RateLimitMs int `koanf:"rate_limit_ms" json:"rate_limit_ms" validate:"gte=0"`

	// FailureThreshold consecutive failures open the breaker for
	// BreakerTimeout.
	FailureThreshold uint32        `koanf:"failure_threshold" json:"failure_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" json:"breaker_timeout"`
}

// poster delivers JSON bodies over HTTP behind a rate limiter and a
// circuit breaker.
type poster struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[int]

	mu      sync.RWMutex
	url     string
	headers map[string]string
	enabled bool
}

func newPoster(name string, cfg HTTPConfig, defaultSpacing time.Duration) *poster {
	spacing := time.Duration(cfg.RateLimitMs) * time.Millisecond
	if spacing == 0 {
		spacing = defaultSpacing
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	breakerName := "notifier_" + name
	return &poster{
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
		breaker: gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
			Name:    breakerName,
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			},
		}),
		url:     cfg.URL,
		headers: headers,
		enabled: cfg.Enabled,
	}
}

func (p *poster) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled && p.url != ""
}

func (p *poster) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

func (p *poster) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// post marshals v and sends it. A disabled poster drops silently.
func (p *poster) post(ctx context.Context, v any) error {
	p.mu.RLock()
	if !p.enabled || p.url == "" {
		p.mu.RUnlock()
		return nil
	}
	url := p.url
	headers := make(map[string]string, len(p.headers))
	for k, v := range p.headers {
		headers[k] = v
	}
	p.mu.RUnlock()

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", p.name, err)
	}

	breakerName := "notifier_" + p.name
	_, err = p.breaker.Execute(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("failed to create %s request: %w", p.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to send %s: %w", p.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return resp.StatusCode, fmt.Errorf("%s returned status %d", p.name, resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrNotifierOpen, p.name)
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return nil
}

// WebhookNotifier posts the violation payload as-is to a generic endpoint.
type WebhookNotifier struct {
	*poster
}

// NewWebhookNotifier creates a webhook notifier. The default spacing is
// 500ms.
func NewWebhookNotifier(cfg HTTPConfig) *WebhookNotifier {
	return &WebhookNotifier{poster: newPoster("webhook", cfg, 500*time.Millisecond)}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Send implements Notifier.
func (n *WebhookNotifier) Send(ctx context.Context, payload *Payload) error {
	return n.post(ctx, payload)
}

// DiscordNotifier posts violations as Discord embeds.
type DiscordNotifier struct {
	*poster
}

// NewDiscordNotifier creates a Discord notifier. The default spacing is
// one second.
func NewDiscordNotifier(cfg HTTPConfig) *DiscordNotifier {
	return &DiscordNotifier{poster: newPoster("discord", cfg, time.Second)}
}

func (n *DiscordNotifier) Name() string { return "discord" }

// Send implements Notifier.
func (n *DiscordNotifier) Send(ctx context.Context, payload *Payload) error {
	return n.post(ctx, discordWebhookPayload{Embeds: []discordEmbed{buildEmbed(payload)}})
}

func buildEmbed(p *Payload) discordEmbed {
	r := p.Report
	fields := []discordEmbedField{
		{Name: "Entity", Value: string(r.Entity), Inline: true},
		{Name: "Severity", Value: fmt.Sprintf("%s (%.3f)", p.Severity, r.Severity), Inline: true},
		{Name: "Check", Value: r.CheckID, Inline: true},
		{Name: "From", Value: r.InitialLocation.String(), Inline: true},
		{Name: "To", Value: r.FinalLocation.String(), Inline: true},
	}
	if p.Signal != nil {
		fields = append(fields, discordEmbedField{
			Name:   "Recent violations",
			Value:  fmt.Sprintf("%d", p.Signal.Violations),
			Inline: true,
		})
	}

	return discordEmbed{
		Title:       r.Type + " violation",
		Description: strings.Join(r.Information, "\n"),
		Color:       severityColor(p.Severity),
		Timestamp:   p.Timestamp.Format(time.RFC3339),
		Fields:      fields,
		Footer:      discordEmbedFooter{Text: "Guardian"},
	}
}

func severityColor(severity Severity) int {
	switch severity {
	case SeverityCritical:
		return 0xFF0000
	case SeverityWarning:
		return 0xFFA500
	case SeverityInfo:
		return 0x3498DB
	default:
		return 0x95A5A6
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}
