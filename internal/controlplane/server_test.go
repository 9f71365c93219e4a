package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fentz26/pomo/internal/audit"
	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/models"
	"github.com/fentz26/pomo/internal/notify"
	"github.com/fentz26/pomo/internal/store"
	"github.com/fentz26/pomo/internal/ticker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stateEnvelope struct {
	State engine.Snapshot `json:"state"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testEnv struct {
	server  *Server
	service *Service
	store   *store.Store
	saved   []models.Settings
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(ctx, s, notify.NewPrompt(), engine.Options{
		Settings:    models.DefaultSettings(),
		AutoAdvance: true,
		Countdown:   ticker.NewCountdown(time.Hour),
		Journal:     audit.NewJournal(s),
	})
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	env := &testEnv{store: s}
	env.service = NewService(eng, s)
	env.service.OnSettingsChanged(func(settings models.Settings, _ bool) error {
		env.saved = append(env.saved, settings)
		return nil
	})
	env.server = NewServer(env.service, "127.0.0.1:0")

	t.Cleanup(func() {
		cancel()
		<-done
		s.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("Failed to decode response %s: %v", raw, err)
	}
}

func TestHealthEndpoint_OK(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}

	var health HealthResponse
	decode(t, raw, &health)
	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	env := newTestServer(t)

	status, _ := env.do(t, http.MethodPost, "/health", nil)
	if status == http.StatusOK {
		t.Errorf("Expected non-200 for POST /health, got %d", status)
	}
}

func TestStartPauseResume(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodPost, "/api/start", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d: %s", status, raw)
	}
	var resp stateEnvelope
	decode(t, raw, &resp)
	if resp.State.State.Phase != models.PhaseRunning {
		t.Errorf("Expected running, got %s", resp.State.State.Phase)
	}
	if resp.State.PhaseText != "Session 1" {
		t.Errorf("Expected 'Session 1', got %q", resp.State.PhaseText)
	}

	status, raw = env.do(t, http.MethodPost, "/api/pause", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on pause, got %d", status)
	}
	decode(t, raw, &resp)
	if resp.State.State.Phase != models.PhasePaused {
		t.Errorf("Expected paused, got %s", resp.State.State.Phase)
	}
	if resp.State.InSession {
		t.Error("Paused timer should not be in session")
	}

	status, raw = env.do(t, http.MethodGet, "/api/state", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on state, got %d", status)
	}
	decode(t, raw, &resp)
	if resp.State.State.Phase != models.PhasePaused {
		t.Errorf("Expected paused state, got %s", resp.State.State.Phase)
	}
}

func TestIgnoredIntentIsNoop(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodPost, "/api/pause", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	var resp stateEnvelope
	decode(t, raw, &resp)
	if resp.State.State.Phase != models.PhaseBeforeRun {
		t.Errorf("Expected before_run, got %s", resp.State.State.Phase)
	}
}

func TestResetRecordsInterval(t *testing.T) {
	env := newTestServer(t)

	env.do(t, http.MethodPost, "/api/start", nil)
	if status, _ := env.do(t, http.MethodPost, "/api/reset", nil); status != http.StatusOK {
		t.Fatalf("Expected 200 on reset, got %d", status)
	}

	// Persistence runs after the response.
	var intervals struct {
		Intervals []models.CompletedInterval `json:"intervals"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, raw := env.do(t, http.MethodGet, "/api/intervals", nil)
		decode(t, raw, &intervals)
		if len(intervals.Intervals) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(intervals.Intervals) != 1 {
		t.Fatalf("Expected 1 interval, got %d", len(intervals.Intervals))
	}
	if intervals.Intervals[0].Kind != models.KindSession {
		t.Errorf("Expected session, got %s", intervals.Intervals[0].Kind)
	}

	var stats Stats
	status, raw := env.do(t, http.MethodGet, "/api/stats?days=7", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on stats, got %d", status)
	}
	decode(t, raw, &stats)
	if stats.Today.Sessions != 1 || stats.Today.Level != 0 {
		t.Errorf("Expected 1 session at level 0, got %d at %d", stats.Today.Sessions, stats.Today.Level)
	}

	var journal struct {
		Transitions []models.TransitionEntry `json:"transitions"`
	}
	_, raw = env.do(t, http.MethodGet, "/api/transitions?limit=10", nil)
	decode(t, raw, &journal)
	if len(journal.Transitions) != 2 {
		t.Fatalf("Expected 2 journal entries, got %d", len(journal.Transitions))
	}
	if journal.Transitions[0].Event != models.EventReset {
		t.Errorf("Expected newest entry RESET, got %s", journal.Transitions[0].Event)
	}

	status, raw = env.do(t, http.MethodDelete, "/api/intervals", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on clear, got %d", status)
	}
	var cleared struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, raw, &cleared)
	if cleared.Deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", cleared.Deleted)
	}
}

func TestNoticeWithoutPending(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodPost, "/api/notice/ack", nil)
	if status != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", status)
	}
	var apiErr apiErrorEnvelope
	decode(t, raw, &apiErr)
	if apiErr.Error.Code != "no_pending_notice" {
		t.Errorf("Expected no_pending_notice, got %s", apiErr.Error.Code)
	}

	status, _ = env.do(t, http.MethodPost, "/api/notice/dismiss", map[string]string{"id": "missing"})
	if status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
}

func TestUpdateSettings(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodPut, "/api/settings", map[string]interface{}{
		"session_duration_seconds": 600,
		"auto_advance":             false,
	})
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}
	var resp stateEnvelope
	decode(t, raw, &resp)
	if resp.State.State.RemainingSeconds != 600 {
		t.Errorf("Expected idle clock re-armed to 600, got %d", resp.State.State.RemainingSeconds)
	}
	if resp.State.AutoAdvance {
		t.Error("Expected auto advance off")
	}
	if resp.State.Settings.BreakDurationSeconds != models.DefaultSettings().BreakDurationSeconds {
		t.Error("Unpatched fields should keep their values")
	}
	if len(env.saved) != 1 || env.saved[0].SessionDurationSeconds != 600 {
		t.Errorf("Expected settings hook to receive the update, got %+v", env.saved)
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	env := newTestServer(t)

	status, raw := env.do(t, http.MethodPut, "/api/settings", map[string]int{"break_duration_seconds": 0})
	if status != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", status)
	}
	var apiErr apiErrorEnvelope
	decode(t, raw, &apiErr)
	if apiErr.Error.Code != "invalid_settings" {
		t.Errorf("Expected invalid_settings, got %s", apiErr.Error.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader([]byte("{bad")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid json, got %d", w.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	env := newTestServer(t)

	cases := []struct {
		path string
		code string
	}{
		{"/api/intervals?from=2024-03-02&to=2024-03-01", "invalid_range"},
		{"/api/intervals?from=yesterday", "invalid_from"},
		{"/api/stats?days=0", "invalid_days"},
		{"/api/transitions?limit=-1", "invalid_limit"},
	}
	for _, tc := range cases {
		status, raw := env.do(t, http.MethodGet, tc.path, nil)
		if status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.path, status)
			continue
		}
		var apiErr apiErrorEnvelope
		decode(t, raw, &apiErr)
		if apiErr.Error.Code != tc.code {
			t.Errorf("%s: expected %s, got %s", tc.path, tc.code, apiErr.Error.Code)
		}
	}
}

func TestEventStream(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Expected event stream content type, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	nextState := func() engine.Snapshot {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
				var snap engine.Snapshot
				decode(t, []byte(data), &snap)
				return snap
			}
		}
	}

	if first := nextState(); first.State.Phase != models.PhaseBeforeRun {
		t.Errorf("Expected initial before_run, got %s", first.State.Phase)
	}

	env.do(t, http.MethodPost, "/api/start", nil)
	if next := nextState(); next.State.Phase != models.PhaseRunning {
		t.Errorf("Expected running after start, got %s", next.State.Phase)
	}
}
