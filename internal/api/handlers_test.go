// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package api

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/icswatch/icswatch/internal/auth"
	"github.com/icswatch/icswatch/internal/classify"
	"github.com/icswatch/icswatch/internal/config"
	"github.com/icswatch/icswatch/internal/datasource"
	"github.com/icswatch/icswatch/internal/logging"
	"github.com/icswatch/icswatch/internal/replay"
	"github.com/icswatch/icswatch/internal/sampling"
	"github.com/icswatch/icswatch/internal/stats"
	ws "github.com/icswatch/icswatch/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Output: io.Discard})
}

// memSource is a tiny in-memory capture for handler tests.
type memSource struct {
	records []datasource.Record
}

func newMemSource(n int) *memSource {
	src := &memSource{}
	for i := 0; i < n; i++ {
		src.records = append(src.records, datasource.Record{
			"Time":     strconv.Itoa(i),
			"category": "clean",
		})
	}
	return src
}

func (s *memSource) Count() int        { return len(s.records) }
func (s *memSource) Columns() []string { return []string{"Time", "category"} }
func (s *memSource) Close() error      { return nil }

func (s *memSource) FetchByIndex(ctx context.Context, idx int) (datasource.Record, error) {
	if idx < 0 || idx >= len(s.records) {
		return nil, fmt.Errorf("index %d: %w", idx, datasource.ErrOutOfRange)
	}
	return s.records[idx], nil
}

func (s *memSource) FetchBatch(ctx context.Context, idxs []int) ([]datasource.Record, error) {
	out := make([]datasource.Record, 0, len(idxs))
	for _, idx := range idxs {
		rec, err := s.FetchByIndex(ctx, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// testEnv wires a real controller and hub behind the router.
type testEnv struct {
	router  http.Handler
	handler *Handler
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{}
		cfg.Server.CORSOrigins = []string{"*"}
	}

	src := newMemSource(20)
	pool := sampling.NewPool(src.Count(), sampling.DefaultConfig(), rand.New(rand.NewSource(1)))
	pipeline := classify.NewPipeline(classify.Config{FeatureColumns: []string{"Time"}, InputWidth: 1}, nil, nil)
	agg := stats.New(stats.Config{})
	hub := ws.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	controller := replay.New(replay.Config{}, src, pool, pipeline, agg, hub, nil)
	go func() { _ = controller.Serve(ctx) }()
	t.Cleanup(controller.Stop)

	handler := NewHandler(controller, hub, cfg)

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthEnabled {
		var err error
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			t.Fatalf("NewJWTManager() error: %v", err)
		}
	}

	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})
	router := NewRouter(handler, mw, jwtManager)

	return &testEnv{
		router:  router.Setup(),
		handler: handler,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, &resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !resp.Success {
		t.Error("Success should be true")
	}
	data := resp.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("status field = %v, want ok", data["status"])
	}
	if data["state"] != "stopped" {
		t.Errorf("state = %v, want stopped", data["state"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["is_running"] != false {
		t.Errorf("is_running = %v, want false", data["is_running"])
	}
	if data["total_rows"] != float64(20) {
		t.Errorf("total_rows = %v, want 20", data["total_rows"])
	}
}

func TestStartPauseResumeStop(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/replay/start", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["is_running"] != true {
		t.Errorf("is_running = %v after start", data["is_running"])
	}

	// Starting again while running is an invalid transition.
	rec, resp = env.do(t, http.MethodPost, "/api/v1/replay/start", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double start status = %d, want 409", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidState {
		t.Errorf("error = %+v, want %s", resp.Error, ErrCodeInvalidState)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/replay/pause", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d, want 200", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/replay/resume", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want 200", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/replay/stop", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", rec.Code)
	}
}

func TestPauseWhileStopped(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/replay/pause", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp.Error.Code != ErrCodeInvalidState {
		t.Errorf("error code = %q, want %s", resp.Error.Code, ErrCodeInvalidState)
	}
}

func TestSetSpeed(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSpeed  float64
	}{
		{"valid", `{"speed": 2.5}`, http.StatusOK, 2.5},
		{"clamped high", `{"speed": 500}`, http.StatusOK, 10.0},
		{"clamped low", `{"speed": 0.01}`, http.StatusOK, 0.1},
		{"zero rejected", `{"speed": 0}`, http.StatusBadRequest, 0},
		{"negative rejected", `{"speed": -1}`, http.StatusBadRequest, 0},
		{"malformed body", `{"speed":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/v1/replay/speed", tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			data := resp.Data.(map[string]interface{})
			if data["playback_speed"] != tt.wantSpeed {
				t.Errorf("playback_speed = %v, want %v", data["playback_speed"], tt.wantSpeed)
			}
		})
	}
}

func TestSetRandomMode(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/replay/random-mode", `{"enabled": true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["random_mode"] != true {
		t.Errorf("random_mode = %v, want true", data["random_mode"])
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/status", "", nil)
	var status APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Data.(map[string]interface{})["random_mode"] != true {
		t.Error("status should reflect random mode")
	}
}

func TestClassificationsValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/classifications?limit=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !resp.Success {
		t.Error("Success should be true")
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/classifications?limit=100000", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized limit", rec.Code)
	}
	if resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %s", resp.Error.Code, ErrCodeValidationFailed)
	}
}

func TestTimelineValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/timeline?minutes=30", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/timeline?minutes=0", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for zero minutes", rec.Code)
	}
}

func TestNetworkGraphEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/network-graph", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if _, ok := data["nodes"]; !ok {
		t.Error("graph should carry nodes field")
	}
	if _, ok := data["edges"]; !ok {
		t.Error("graph should carry edges field")
	}
}

func TestResetEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/replay/reset", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", rec.Code)
	}
}

func authedConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Security.AuthEnabled = true
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	cfg.Security.SessionTimeout = time.Hour
	cfg.Security.AdminUsername = "operator"
	cfg.Security.AdminPassword = "hunter2hunter2"
	return cfg
}

func TestLoginAndProtectedRoutes(t *testing.T) {
	env := newTestEnv(t, authedConfig())

	// Control routes reject unauthenticated requests.
	rec, _ := env.do(t, http.MethodPost, "/api/v1/replay/start", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated start status = %d, want 401", rec.Code)
	}

	// Read routes stay open.
	rec, _ = env.do(t, http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d, want 200", rec.Code)
	}

	// Bad credentials are rejected.
	rec, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"operator","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	// Good credentials yield a token.
	rec, resp := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"operator","password":"hunter2hunter2"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}
	token, _ := resp.Data.(map[string]interface{})["token"].(string)
	if token == "" {
		t.Fatal("login should return a token")
	}

	// Token unlocks control routes.
	headers := map[string]string{"Authorization": "Bearer " + token}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/replay/start", "", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated start status = %d, want 200", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/replay/stop", "", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated stop status = %d, want 200", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, authedConfig())

	rec, resp := env.do(t, http.MethodPost, "/api/v1/auth/login", `{"username":"operator"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %s", resp.Error.Code, ErrCodeValidationFailed)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "replay_running") {
		t.Error("metrics output should contain replay collectors")
	}
}
