package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
	"wakehub/internal/config"
	"wakehub/internal/metrics"
	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
	"wakehub/internal/settings"
	"wakehub/internal/store"
	"wakehub/internal/wake"
)

const (
	testAPIKey   = "test-api-key"
	testAdminKey = "test-admin-key"
)

func newTestDeps(t *testing.T) app.Deps {
	t.Helper()

	st, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	set := settings.New(st)
	m := model.New(st, zerolog.Nop())
	loop := sched.NewLoop(m, zerolog.Nop())
	reg := registry.New()
	reg.RegisterBuiltins(zerolog.Nop(), "", nil)
	wk := wake.New(set, m, loop, zerolog.Nop())

	return app.Deps{
		Cfg: config.Config{
			APIKey:    testAPIKey,
			AdminKey:  testAdminKey,
			RateLimit: 1000,
		},
		Log:      zerolog.Nop(),
		Store:    st,
		Settings: set,
		Model:    m,
		Loop:     loop,
		Registry: reg,
		Wake:     wk,
		Metrics:  metrics.New(),
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec.Code, resp
}

func authed(t *testing.T, h http.Handler, method, path string, body any) (int, apiResponse) {
	t.Helper()
	return doJSON(t, h, method, path, body, map[string]string{"X-API-Key": testAPIKey})
}

func admin(t *testing.T, h http.Handler, method, path string, body any) (int, apiResponse) {
	t.Helper()
	return doJSON(t, h, method, path, body, map[string]string{
		"X-API-Key":   testAPIKey,
		"X-Admin-Key": testAdminKey,
	})
}

func wireTime(t time.Time) string {
	return t.Local().Format(wire.TimeLayout)
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	r := NewRouter(newTestDeps(t))

	if code, _ := doJSON(t, r, http.MethodGet, "/api/v1/health", nil, nil); code != http.StatusOK {
		t.Errorf("health without key = %d", code)
	}
	if code, _ := doJSON(t, r, http.MethodGet, "/api/v1/ready", nil, nil); code != http.StatusOK {
		t.Errorf("ready = %d", code)
	}
	code, resp := doJSON(t, r, http.MethodGet, "/api/v1/version", nil, nil)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), Version) {
		t.Errorf("version = %d %s", code, resp.Data)
	}

	if code, _ := doJSON(t, r, http.MethodGet, "/api/v1/events", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("events without key = %d", code)
	}
	if code, _ := doJSON(t, r, http.MethodGet, "/api/v1/events", nil, map[string]string{"X-API-Key": "wrong"}); code != http.StatusUnauthorized {
		t.Errorf("events with wrong key = %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestEventLifecycle(t *testing.T) {
	deps := newTestDeps(t)
	r := NewRouter(deps)
	at := time.Now().Add(48 * time.Hour).Truncate(time.Minute)

	code, resp := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"title":    "dentist",
		"time":     wireTime(at),
		"duration": 3600,
		"category": "health",
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, resp.Message)
	}
	var created wire.Event
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Title != "dentist" {
		t.Fatalf("created = %+v", created)
	}

	code, resp = authed(t, r, http.MethodGet, "/api/v1/events/"+created.ID, nil)
	if code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}

	code, _ = authed(t, r, http.MethodGet, "/api/v1/events/no-such-id", nil)
	if code != http.StatusNotFound {
		t.Errorf("get missing = %d", code)
	}

	code, resp = authed(t, r, http.MethodPut, "/api/v1/events/"+created.ID, map[string]any{
		"title":    "dentist (moved)",
		"time":     wireTime(at.Add(time.Hour)),
		"duration": 3600,
		"category": "health",
	})
	if code != http.StatusOK {
		t.Fatalf("update = %d %s", code, resp.Message)
	}

	newTitle := "dentist (final)"
	code, resp = authed(t, r, http.MethodPatch, "/api/v1/events/"+created.ID, map[string]any{
		"title": newTitle,
	})
	if code != http.StatusOK {
		t.Fatalf("patch = %d %s", code, resp.Message)
	}
	var patched wire.Event
	if err := json.Unmarshal(resp.Data, &patched); err != nil {
		t.Fatalf("decode patched: %v", err)
	}
	if patched.Title != newTitle {
		t.Errorf("patched title = %q", patched.Title)
	}

	// Delete is admin-gated.
	code, _ = authed(t, r, http.MethodDelete, "/api/v1/events/"+created.ID+"?soft=true", nil)
	if code != http.StatusForbidden {
		t.Fatalf("delete without admin key = %d", code)
	}
	code, _ = admin(t, r, http.MethodDelete, "/api/v1/events/"+created.ID+"?soft=true", nil)
	if code != http.StatusNoContent {
		t.Fatalf("soft delete = %d", code)
	}
	if code, _ = authed(t, r, http.MethodGet, "/api/v1/events/"+created.ID, nil); code != http.StatusNotFound {
		t.Errorf("get after soft delete = %d", code)
	}

	code, resp = authed(t, r, http.MethodPost, "/api/v1/events/"+created.ID+"/restore", nil)
	if code != http.StatusOK {
		t.Fatalf("restore = %d %s", code, resp.Message)
	}
	if code, _ = authed(t, r, http.MethodGet, "/api/v1/events/"+created.ID, nil); code != http.StatusOK {
		t.Errorf("get after restore = %d", code)
	}
}

func TestMutationRateTierSparesReads(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	at := time.Now().Add(48 * time.Hour).Truncate(time.Minute)

	// Reads are only subject to the global tier, so they sail past the
	// 30/min mutation budget.
	for i := 0; i < 40; i++ {
		if code, _ := authed(t, r, http.MethodGet, "/api/v1/events", nil); code != http.StatusOK {
			t.Fatalf("read %d = %d", i, code)
		}
	}

	// Mutations share the tighter budget: the 31st in the window is rejected.
	for i := 0; i < 31; i++ {
		code, resp := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
			"title": "filler",
			"time":  wireTime(at),
		})
		switch {
		case i < 30 && code != http.StatusCreated:
			t.Fatalf("create %d = %d %s", i, code, resp.Message)
		case i == 30 && code != http.StatusTooManyRequests:
			t.Fatalf("create past the budget = %d", code)
		}
	}
}

func TestCreateTaskEnqueues(t *testing.T) {
	deps := newTestDeps(t)
	r := NewRouter(deps)
	at := time.Now().Add(2 * time.Hour).Truncate(time.Minute)

	code, resp := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"title":          "medication",
		"time":           wireTime(at),
		"duration":       0,
		"category":       "task",
		"notifier_name":  "log",
		"action_name":    "log",
		"notify_minutes": []int{15},
	})
	if code != http.StatusCreated {
		t.Fatalf("create task = %d %s", code, resp.Message)
	}
	if deps.Loop.Len() != 1 {
		t.Errorf("queue length = %d, want 1", deps.Loop.Len())
	}
	// The loop upserts task-category events into the model too.
	var created wire.Event
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := deps.Model.GetByID(created.ID); !ok {
		t.Error("task event missing from the model")
	}
}

func TestCreateTaskUnknownNames(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	at := time.Now().Add(2 * time.Hour).Truncate(time.Minute)

	code, _ := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"title":         "medication",
		"time":          wireTime(at),
		"category":      "task",
		"notifier_name": "smoke-signal",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown notifier = %d", code)
	}
}

func TestRecurringEndpoints(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	at := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	code, _ := authed(t, r, http.MethodPost, "/api/v1/recurring", map[string]any{
		"title": "standup",
		"time":  wireTime(at),
	})
	if code != http.StatusBadRequest {
		t.Fatalf("recurring without pattern = %d", code)
	}

	code, resp := authed(t, r, http.MethodPost, "/api/v1/recurring", map[string]any{
		"title": "standup",
		"time":  wireTime(at),
		"pattern": map[string]any{
			"freq":     "daily",
			"interval": 1,
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("create recurring = %d %s", code, resp.Message)
	}

	code, resp = authed(t, r, http.MethodGet, "/api/v1/recurring", nil)
	if code != http.StatusOK {
		t.Fatalf("list recurring = %d", code)
	}
	var listed []wire.Event
	if err := json.Unmarshal(resp.Data, &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 1 || !listed[0].Recurring {
		t.Errorf("listed = %+v", listed)
	}

	code, resp = authed(t, r, http.MethodGet, "/api/v1/events/next?n=3", nil)
	if code != http.StatusOK {
		t.Fatalf("next = %d", code)
	}
	var occs []wire.Occurrence
	if err := json.Unmarshal(resp.Data, &occs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(occs) != 3 {
		t.Errorf("next returned %d occurrences, want 3", len(occs))
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	day := time.Now().AddDate(0, 0, 7)
	at := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.Local)

	code, resp := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"title":    "meeting",
		"time":     wireTime(at),
		"duration": 3600,
	})
	if code != http.StatusCreated {
		t.Fatalf("seed = %d %s", code, resp.Message)
	}

	code, resp = authed(t, r, http.MethodPost, "/api/v1/availability/events/validate", map[string]any{
		"time":     wireTime(at.Add(30 * time.Minute)),
		"duration": 3600,
	})
	if code != http.StatusOK {
		t.Fatalf("validate = %d", code)
	}
	var v struct {
		Valid     bool         `json:"valid"`
		Conflicts []wire.Event `json:"conflicts"`
	}
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Valid || len(v.Conflicts) != 1 {
		t.Errorf("validate = %+v", v)
	}

	code, resp = authed(t, r, http.MethodPost, "/api/v1/availability/events/conflicts", map[string]any{
		"time":     wireTime(at.Add(2 * time.Hour)),
		"duration": 3600,
	})
	if code != http.StatusOK {
		t.Fatalf("conflicts = %d", code)
	}
	var clear []wire.Event
	if err := json.Unmarshal(resp.Data, &clear); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(clear) != 0 {
		t.Errorf("conflicts for a free interval = %+v", clear)
	}

	code, resp = authed(t, r, http.MethodGet, "/api/v1/availability/free-slots/"+at.Format("2006-01-02"), nil)
	if code != http.StatusOK {
		t.Fatalf("free-slots = %d", code)
	}
	var slots []wire.TimeSlot
	if err := json.Unmarshal(resp.Data, &slots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2: %+v", len(slots), slots)
	}
	if slots[0].DurationMinutes != 60 || slots[1].DurationMinutes != 360 {
		t.Errorf("slot durations = %d, %d", slots[0].DurationMinutes, slots[1].DurationMinutes)
	}

	code, _ = authed(t, r, http.MethodGet, "/api/v1/availability/free-slots/"+at.Format("2006-01-02")+"?start_hour=17&end_hour=9", nil)
	if code != http.StatusBadRequest {
		t.Errorf("inverted window = %d", code)
	}

	code, resp = authed(t, r, http.MethodGet, "/api/v1/availability/free-slots/next?duration_minutes=120&after="+
		strings.ReplaceAll(wireTime(at), " ", "%20"), nil)
	if code != http.StatusOK {
		t.Fatalf("next free = %d %s", code, resp.Message)
	}
}

func TestStatsEndpoint(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	day := time.Now().AddDate(0, 0, 7)
	at := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.Local)

	code, resp := authed(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"title":    "standup",
		"time":     wireTime(at),
		"duration": 1800,
		"category": "work",
	})
	if code != http.StatusCreated {
		t.Fatalf("seed = %d %s", code, resp.Message)
	}

	from := at.Format("2006-01-02")
	to := at.AddDate(0, 0, 1).Format("2006-01-02")
	code, resp = authed(t, r, http.MethodGet, "/api/v1/stats/events/"+from+"/"+to, nil)
	if code != http.StatusOK {
		t.Fatalf("stats = %d", code)
	}
	var st model.Stats
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalEvents != 1 || st.TotalMinutes != 30 || st.EventsByCategory["work"] != 1 {
		t.Errorf("stats = %+v", st)
	}

	if code, _ = authed(t, r, http.MethodGet, "/api/v1/stats/events/"+from+"/"+from, nil); code != http.StatusBadRequest {
		t.Errorf("empty range = %d", code)
	}
}

func TestWakeEndpoints(t *testing.T) {
	r := NewRouter(newTestDeps(t))

	code, resp := authed(t, r, http.MethodGet, "/api/v1/wake/config", nil)
	if code != http.StatusOK {
		t.Fatalf("get config = %d", code)
	}
	var cfg struct {
		Enabled      bool   `json:"enabled"`
		BaselineTime string `json:"baseline_time"`
		LeadMinutes  int    `json:"lead_minutes"`
	}
	if err := json.Unmarshal(resp.Data, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.Enabled || cfg.BaselineTime != "14:00" || cfg.LeadMinutes != 45 {
		t.Errorf("defaults = %+v", cfg)
	}

	update := map[string]any{
		"enabled":       true,
		"baseline_time": "08:30",
		"lead_minutes":  60,
		"skip_weekends": true,
	}
	if code, _ = authed(t, r, http.MethodPut, "/api/v1/wake/config", update); code != http.StatusForbidden {
		t.Fatalf("put config without admin key = %d", code)
	}
	code, resp = admin(t, r, http.MethodPut, "/api/v1/wake/config", update)
	if code != http.StatusOK {
		t.Fatalf("put config = %d %s", code, resp.Message)
	}
	if err := json.Unmarshal(resp.Data, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.BaselineTime != "08:30" || cfg.LeadMinutes != 60 {
		t.Errorf("updated config = %+v", cfg)
	}

	bad := map[string]any{"baseline_time": "noon", "lead_minutes": 30}
	if code, _ = admin(t, r, http.MethodPut, "/api/v1/wake/config", bad); code != http.StatusBadRequest {
		t.Errorf("bad baseline = %d", code)
	}

	// A weekday with no events previews as the configured baseline.
	weekday := nextWeekday(time.Now().AddDate(0, 0, 1))
	code, resp = authed(t, r, http.MethodPost, "/api/v1/wake/preview/"+weekday.Format("2006-01-02"), nil)
	if code != http.StatusOK {
		t.Fatalf("preview = %d %s", code, resp.Message)
	}
	var pv struct {
		Skip     bool   `json:"skip"`
		Reason   string `json:"reason"`
		WakeTime string `json:"wake_time"`
	}
	if err := json.Unmarshal(resp.Data, &pv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pv.Skip || pv.Reason != "baseline" || !strings.Contains(pv.WakeTime, "08:30") {
		t.Errorf("preview = %+v", pv)
	}
}

func TestRegistryEndpoints(t *testing.T) {
	r := NewRouter(newTestDeps(t))

	code, resp := authed(t, r, http.MethodGet, "/api/v1/notifiers", nil)
	if code != http.StatusOK || string(resp.Data) != `["log"]` {
		t.Errorf("notifiers = %d %s", code, resp.Data)
	}
	code, resp = authed(t, r, http.MethodGet, "/api/v1/actions", nil)
	if code != http.StatusOK || string(resp.Data) != `["log","webhook"]` {
		t.Errorf("actions = %d %s", code, resp.Data)
	}
	if code, _ = authed(t, r, http.MethodGet, "/api/v1/history", nil); code != http.StatusOK {
		t.Errorf("history = %d", code)
	}
}

func nextWeekday(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
