// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vectrixdevelops/guardiansponge-sub001/internal/bypass"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/detection"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/entity"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/journal"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/logging"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/pipeline"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/report"
	"github.com/vectrixdevelops/guardiansponge-sub001/internal/validation"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// fakeEngine records commands instead of enqueueing them.
type fakeEngine struct {
	mu         sync.Mutex
	status     pipeline.Status
	detections []detection.Info
	err        error

	enabled    map[string]bool
	configured map[string]string
	bypasses   []pipeline.BypassRequest
	closed     []entity.ID
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		status: pipeline.Status{Tick: 42, Running: true},
		detections: []detection.Info{
			{ID: detection.MovementSpeedID, Name: "Movement Speed", Enabled: true},
			{ID: detection.ReachID, Name: "Reach", Enabled: false},
		},
		enabled:    make(map[string]bool),
		configured: make(map[string]string),
	}
}

func (f *fakeEngine) Status() pipeline.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEngine) Detections() []detection.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]detection.Info(nil), f.detections...)
}

func (f *fakeEngine) known(id string) bool {
	for _, d := range f.detections {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeEngine) RequestBypass(_ context.Context, req pipeline.BypassRequest) (bypass.Info, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return bypass.Info{}, verr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return bypass.Info{}, f.err
	}
	f.bypasses = append(f.bypasses, req)
	return bypass.Info{ID: "t-1", Entity: req.Entity, Owner: req.Owner, ClosesAt: 42 + req.Ticks}, nil
}

func (f *fakeEngine) CloseBypass(_ context.Context, id entity.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.closed = append(f.closed, id)
	return 2, nil
}

func (f *fakeEngine) Configure(_ context.Context, id string, raw json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if !f.known(id) {
		return fmt.Errorf("%w: %s", detection.ErrNotFound, id)
	}
	f.configured[id] = string(raw)
	return nil
}

func (f *fakeEngine) SetEnabled(_ context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if !f.known(id) {
		return fmt.Errorf("%w: %s", detection.ErrNotFound, id)
	}
	f.enabled[id] = enabled
	for i := range f.detections {
		if f.detections[i].ID == id {
			f.detections[i].Enabled = enabled
		}
	}
	return nil
}

// fakeStore serves fixed records and remembers the last query.
type fakeStore struct {
	records []report.Record
	last    journal.Query
	err     error
}

func (s *fakeStore) List(_ context.Context, q journal.Query) ([]report.Record, error) {
	s.last = q
	return s.records, s.err
}

func (s *fakeStore) Stats() journal.Stats {
	return journal.Stats{Writes: int64(len(s.records))}
}

// testResponse is APIResponse with undecoded data.
type testResponse struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func newTestRouter(engine Engine, opts ...HandlerOption) http.Handler {
	cfg := DefaultRouterConfig()
	cfg.RateLimitRequests = 0
	return NewRouter(NewHandler(engine, opts...), cfg).Setup()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealthProbes(t *testing.T) {
	engine := newFakeEngine()
	h := newTestRouter(engine)

	rec, resp := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Errorf("/healthz = %d %q", rec.Code, resp.Status)
	}
	if resp.Metadata.RequestID == "" || rec.Header().Get("X-Request-ID") != resp.Metadata.RequestID {
		t.Errorf("request id header %q, metadata %q", rec.Header().Get("X-Request-ID"), resp.Metadata.RequestID)
	}

	if rec, _ := do(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("/readyz running = %d, want 200", rec.Code)
	}
	engine.mu.Lock()
	engine.status.Running = false
	engine.mu.Unlock()
	if rec, _ := do(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz stopped = %d, want 503", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	store := &fakeStore{records: []report.Record{{ID: "a"}, {ID: "b"}}}
	h := newTestRouter(newFakeEngine(), WithViolations(store))

	rec, resp := do(t, h, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got StatusResponse
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Pipeline.Tick != 42 || !got.Pipeline.Running {
		t.Errorf("pipeline = %+v", got.Pipeline)
	}
	if got.Journal == nil || got.Journal.Writes != 2 {
		t.Errorf("journal = %+v", got.Journal)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(newFakeEngine())
	do(t, h, http.MethodGet, "/healthz", "")

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "guardian_api_requests_total") {
		t.Error("/metrics does not expose guardian_api_requests_total")
	}
}

func TestDetections(t *testing.T) {
	h := newTestRouter(newFakeEngine())

	rec, resp := do(t, h, http.MethodGet, "/api/v1/detections", "")
	if rec.Code != http.StatusOK || resp.Metadata.Count != 2 {
		t.Fatalf("list = %d, count %d", rec.Code, resp.Metadata.Count)
	}

	rec, resp = do(t, h, http.MethodGet, "/api/v1/detections/reach", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var info detection.Info
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.ID != detection.ReachID {
		t.Errorf("detection = %+v", info)
	}

	rec, resp = do(t, h, http.MethodGet, "/api/v1/detections/flight", "")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown = %d %+v", rec.Code, resp.Error)
	}
}

func TestSetDetectionEnabled(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"enable", "/api/v1/detections/reach/enabled", `{"enabled":true}`, http.StatusOK, ""},
		{"disable", "/api/v1/detections/movement_speed/enabled", `{"enabled":false}`, http.StatusOK, ""},
		{"missing field", "/api/v1/detections/reach/enabled", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", "/api/v1/detections/reach/enabled", `{"enabled":true,"x":1}`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown detection", "/api/v1/detections/flight/enabled", `{"enabled":true}`, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			rec, resp := do(t, newTestRouter(engine), http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want %s", resp.Error, tt.wantErr)
				}
				return
			}
			if len(engine.enabled) != 1 {
				t.Errorf("SetEnabled calls = %v", engine.enabled)
			}
		})
	}
}

func TestSetDetectionEnabled_ValidationMessage(t *testing.T) {
	_, resp := do(t, newTestRouter(newFakeEngine()), http.MethodPut, "/api/v1/detections/reach/enabled", `{}`)
	if resp.Error == nil || resp.Error.Message != "enabled is required" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestConfigureDetection(t *testing.T) {
	t.Run("applies section", func(t *testing.T) {
		engine := newFakeEngine()
		body := `{"horizontal_base":0.2}`
		rec, _ := do(t, newTestRouter(engine), http.MethodPut, "/api/v1/detections/movement_speed/config", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d (%s)", rec.Code, rec.Body.String())
		}
		if engine.configured[detection.MovementSpeedID] != body {
			t.Errorf("configured = %q", engine.configured[detection.MovementSpeedID])
		}
	})

	tests := []struct {
		name     string
		err      error
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed", nil, `{"horizontal_base":`, http.StatusBadRequest, "INVALID_JSON"},
		{"rejected", fmt.Errorf("detection movement_speed: %w: bad", detection.ErrInvalidConfig), `{}`, http.StatusBadRequest, "INVALID_CONFIG"},
		{"queue full", pipeline.ErrQueueFull, `{}`, http.StatusServiceUnavailable, "QUEUE_FULL"},
		{"timeout", context.DeadlineExceeded, `{}`, http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", errors.New("boom"), `{}`, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			engine.err = tt.err
			rec, resp := do(t, newTestRouter(engine), http.MethodPut, "/api/v1/detections/movement_speed/config", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestRequestBypass(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"issued", `{"entity":"steve","owner":"teleport","triggers":["move"],"ticks":40}`, nil, http.StatusCreated, ""},
		{"missing owner", `{"entity":"steve","ticks":40}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"zero ticks", `{"entity":"steve","owner":"x","ticks":0}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not json", `entity=steve`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"queue full", `{"entity":"steve","owner":"x","ticks":5}`, pipeline.ErrQueueFull, http.StatusServiceUnavailable, "QUEUE_FULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			engine.err = tt.err
			rec, resp := do(t, newTestRouter(engine), http.MethodPost, "/api/v1/bypass", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want %s", resp.Error, tt.wantErr)
				}
				return
			}

			var info bypass.Info
			if err := json.Unmarshal(resp.Data, &info); err != nil {
				t.Fatal(err)
			}
			if info.Entity != "steve" || info.ClosesAt != 82 {
				t.Errorf("ticket = %+v", info)
			}
			if len(engine.bypasses) != 1 || engine.bypasses[0].Triggers[0] != entity.EventType("move") {
				t.Errorf("requests = %+v", engine.bypasses)
			}
		})
	}
}

func TestCloseBypass(t *testing.T) {
	engine := newFakeEngine()
	rec, resp := do(t, newTestRouter(engine), http.MethodDelete, "/api/v1/bypass/steve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if resp.Metadata.Count != 2 || len(engine.closed) != 1 || engine.closed[0] != "steve" {
		t.Errorf("count = %d, closed = %v", resp.Metadata.Count, engine.closed)
	}
}

func TestListViolations(t *testing.T) {
	t.Run("journal disabled", func(t *testing.T) {
		rec, resp := do(t, newTestRouter(newFakeEngine()), http.MethodGet, "/api/v1/violations", "")
		if rec.Code != http.StatusServiceUnavailable || resp.Error.Code != "JOURNAL_DISABLED" {
			t.Errorf("code = %d, error = %+v", rec.Code, resp.Error)
		}
	})

	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantQuery journal.Query
	}{
		{"defaults", "", http.StatusOK, journal.Query{Limit: 100}},
		{"filters", "?limit=5&entity=steve&since=2026-03-01T12:00:00Z", http.StatusOK, journal.Query{Limit: 5, Entity: "steve", Since: since}},
		{"limit too large", "?limit=5000", http.StatusBadRequest, journal.Query{}},
		{"limit zero", "?limit=0", http.StatusBadRequest, journal.Query{}},
		{"bad since", "?since=yesterday", http.StatusBadRequest, journal.Query{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{records: []report.Record{{ID: "r1", Entity: "steve"}}}
			rec, resp := do(t, newTestRouter(newFakeEngine(), WithViolations(store)), http.MethodGet, "/api/v1/violations"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if store.last.Limit != tt.wantQuery.Limit || store.last.Entity != tt.wantQuery.Entity || !store.last.Since.Equal(tt.wantQuery.Since) {
				t.Errorf("query = %+v, want %+v", store.last, tt.wantQuery)
			}
			if resp.Metadata.Count != 1 {
				t.Errorf("count = %d, want 1", resp.Metadata.Count)
			}
		})
	}

	t.Run("store error", func(t *testing.T) {
		store := &fakeStore{err: journal.ErrClosed}
		rec, _ := do(t, newTestRouter(newFakeEngine(), WithViolations(store)), http.MethodGet, "/api/v1/violations", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("code = %d, want 500", rec.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	h := NewRouter(NewHandler(newFakeEngine()), cfg).Setup()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/v1/status", "")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Probes are not limited.
	if rec, _ := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
