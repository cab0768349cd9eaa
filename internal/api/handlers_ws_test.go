// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	ws "github.com/vectrixdevelops/guardiansponge-sub001/internal/websocket"
)

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"browser without allow list", nil, "https://evil.example", false},
		{"allowed origin", []string{"https://panel.example"}, "https://panel.example", true},
		{"other origin", []string{"https://panel.example"}, "https://evil.example", false},
		{"wildcard", []string{"*"}, "https://any.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newFakeEngine(), WithHub(ws.NewHub(), tt.allowed))
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkWebSocketOrigin(req); got != tt.want {
				t.Errorf("checkWebSocketOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebSocket_Disabled(t *testing.T) {
	rec, resp := do(t, newTestRouter(newFakeEngine()), http.MethodGet, "/ws", "")
	if rec.Code != http.StatusServiceUnavailable || resp.Error == nil || resp.Error.Code != "WEBSOCKET_DISABLED" {
		t.Errorf("code = %d, error = %+v", rec.Code, resp.Error)
	}
}

func TestWebSocket_StreamsViolations(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	server := httptest.NewServer(newTestRouter(newFakeEngine(), WithHub(hub, nil)))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	hub.BroadcastJSON(ws.MessageTypeViolation, &detection.Payload{
		EventType: "violation",
		Detection: detection.ReachID,
		Report:    report.Record{ID: "r1", Entity: "steve", Violation: true},
	})

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["type"] != ws.MessageTypeViolation || msg["entity"] != "steve" {
		t.Errorf("message = %v", msg)
	}
}
