// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

// Package testinfra holds test doubles shared across packages.
//
// WebhookServer records the HTTP deliveries of the webhook and Discord
// notifiers:
//
//	hook := testinfra.NewWebhookServer(t)
//	n := detection.NewWebhookNotifier(detection.HTTPConfig{URL: hook.URL(), Enabled: true})
//	_ = n.Send(ctx, payload)
//	var got detection.Payload
//	_ = hook.Captures()[0].Decode(&got)
package testinfra
