// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// WebhookCapture is one request received by a WebhookServer.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// Decode unmarshals the captured body into v.
func (c WebhookCapture) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

// WebhookServer records webhook deliveries for notifier tests.
type WebhookServer struct {
	server *httptest.Server

	mu       sync.Mutex
	captures []WebhookCapture
	status   int
	arrived  chan struct{}
}

// NewWebhookServer starts a recording server that answers 204. It is
// closed when the test ends.
func NewWebhookServer(t testing.TB) *WebhookServer {
	t.Helper()

	ws := &WebhookServer{
		status:  http.StatusNoContent,
		arrived: make(chan struct{}, 1),
	}
	ws.server = httptest.NewServer(http.HandlerFunc(ws.handle))
	t.Cleanup(ws.server.Close)
	return ws
}

func (ws *WebhookServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	ws.mu.Lock()
	ws.captures = append(ws.captures, WebhookCapture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	status := ws.status
	ws.mu.Unlock()

	select {
	case ws.arrived <- struct{}{}:
	default:
	}
	w.WriteHeader(status)
}

// URL returns the server URL.
func (ws *WebhookServer) URL() string {
	return ws.server.URL
}

// RespondWith sets the status code returned from now on.
func (ws *WebhookServer) RespondWith(status int) {
	ws.mu.Lock()
	ws.status = status
	ws.mu.Unlock()
}

// Captures returns a copy of every request received so far.
func (ws *WebhookServer) Captures() []WebhookCapture {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]WebhookCapture, len(ws.captures))
	copy(out, ws.captures)
	return out
}

// Count returns the number of requests received.
func (ws *WebhookServer) Count() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.captures)
}

// WaitFor blocks until at least n requests arrived or timeout passes, and
// reports whether they did.
func (ws *WebhookServer) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for ws.Count() < n {
		select {
		case <-ws.arrived:
		case <-deadline.C:
			return ws.Count() >= n
		}
	}
	return true
}
