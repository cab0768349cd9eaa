// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
)

// setupWebSocketServer serves hub clients and returns a connected peer.
func setupWebSocketServer(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestClient_PingPong(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)

	if err := conn.WriteJSON(map[string]string{"type": MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypePong {
		t.Errorf("reply = %v, want pong", msg)
	}
}

func TestClient_ReceivesBroadcast(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)
	waitFor(t, "registration", func() bool { return hub.GetClientCount() == 1 })

	hub.BroadcastJSON(MessageTypeViolation, violation("steve"))

	msg := readMessage(t, conn)
	if msg["type"] != MessageTypeViolation || msg["entity"] != "steve" {
		t.Fatalf("message = %v", msg)
	}
	data, ok := msg["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", msg["data"])
	}
	if data["detection"] != "movement_speed" {
		t.Errorf("data.detection = %v", data["detection"])
	}
}

func TestClient_Subscribe(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)

	sub := map[string]interface{}{
		"type": MessageTypeSubscribe,
		"data": map[string]string{"entity": "steve"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}
	// Messages are handled in order, so the pong confirms the subscription.
	if err := conn.WriteJSON(map[string]string{"type": MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg["type"] != MessageTypePong {
		t.Fatalf("reply = %v, want pong", msg)
	}

	hub.BroadcastJSON(MessageTypeViolation, violation("alex"))
	hub.BroadcastJSON(MessageTypeViolation, violation("steve"))

	if msg := readMessage(t, conn); msg["entity"] != "steve" {
		t.Errorf("first delivered message = %v, want steve", msg)
	}
}

func TestClient_BadSubscribeIgnored(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","data":"steve"}`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(map[string]string{"type": MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, conn)

	hub.BroadcastJSON(MessageTypeViolation, violation("alex"))
	if msg := readMessage(t, conn); msg["entity"] != "alex" {
		t.Errorf("message = %v, want unfiltered delivery", msg)
	}
}

func TestClient_OversizedMessageDisconnects(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)
	waitFor(t, "registration", func() bool { return hub.GetClientCount() == 1 })

	payload := `{"type":"ping","data":"` + strings.Repeat("x", maxMessageSize) + `"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "unregistration", func() bool { return hub.GetClientCount() == 0 })
}

func TestClient_CloseUnregisters(t *testing.T) {
	hub := startHub(t)
	conn := setupWebSocketServer(t, hub)
	waitFor(t, "registration", func() bool { return hub.GetClientCount() == 1 })

	_ = conn.Close()
	waitFor(t, "unregistration", func() bool { return hub.GetClientCount() == 0 })
}

func TestClient_IDsAreUnique(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	if a.ID() == b.ID() || b.ID() < a.ID() {
		t.Errorf("ids %d and %d are not increasing", a.ID(), b.ID())
	}
}

func TestClient_Accepts(t *testing.T) {
	c := createTestClient(nil, 1)
	tests := []struct {
		filter string
		entity string
		want   bool
	}{
		{"", "", true},
		{"", "steve", true},
		{"steve", "", true},
		{"steve", "steve", true},
		{"steve", "alex", false},
	}
	for _, tt := range tests {
		c.Subscribe(entity.ID(tt.filter))
		if got := c.accepts(Message{Entity: entity.ID(tt.entity)}); got != tt.want {
			t.Errorf("filter %q accepts %q = %v, want %v", tt.filter, tt.entity, got, tt.want)
		}
	}
}
