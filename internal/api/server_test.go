package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/progress"
	queueMemory "github.com/JakeFAU/jobspy-server/internal/queue/memory"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
	storeMemory "github.com/JakeFAU/jobspy-server/internal/storage/memory"
	"github.com/JakeFAU/jobspy-server/internal/tasks"
)

type fakeIDGen struct {
	ids []string
}

func (g *fakeIDGen) NewID() (string, error) {
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type harness struct {
	server   *Server
	store    *storeMemory.TaskStore
	queue    *queueMemory.Queue
	progress *storeMemory.ProgressStore
}

func testConfig() config.Config {
	five := 5
	return config.Config{
		Scraper: config.ScraperConfig{
			ResultsWantedDefault:  20,
			RequestTimeoutSeconds: 60,
		},
		StandardRequests: map[string]scraper.RawRequest{
			"japan-go": {SiteType: []string{"japandev"}, SearchTerm: "golang", ResultsWanted: &five},
		},
	}
}

func newHarness(t *testing.T, cfg config.Config, queueDepth int, ids ...string) harness {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"task-1", "task-2", "task-3"}
	}
	store := storeMemory.NewTaskStore(nil)
	queue := queueMemory.NewQueue(queueDepth)
	manager := tasks.NewManager(
		store,
		queue,
		&fakeIDGen{ids: ids},
		&fakeClock{now: time.Unix(100, 0)},
		nil,
		tasks.Config{Defaults: cfg.RequestDefaults(), EnqueueTimeout: 20 * time.Millisecond},
		zap.NewNop(),
	)
	progressStore := storeMemory.NewProgressStore(0)
	return harness{
		server:   NewServer(manager, progressStore, cfg, zap.NewNop()),
		store:    store,
		queue:    queue,
		progress: progressStore,
	}
}

func (h harness) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_SubmitScrape_Succeeds(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)
	rec := h.do(http.MethodPost, "/scrape",
		`{"site_type":["JAPANDEV","tokyodev"],"search_term":"golang","results_wanted":3,"options":{"proxies":"http://p:1"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, map[string]any{
		"task_id": "task-1",
		"status":  "processing",
		"message": "Job submitted.",
	}, decode(t, rec))

	item, err := h.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "task-1", item.TaskID)
	require.Equal(t, []scraper.Site{scraper.SiteJapanDev, scraper.SiteTokyoDev}, item.Request.Sites)
	require.Equal(t, 3, item.Request.ResultsWanted)
	require.Equal(t, "http://p:1", item.Request.Options["proxies"])
}

func TestServer_SubmitScrape_Rejections(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", "{invalid", "invalid JSON"},
		{"empty sites", `{"site_type":[]}`, "site_type list cannot be empty"},
		{"missing sites", `{"search_term":"go"}`, "site_type list cannot be empty"},
		{"unknown site", `{"site_type":["monster"]}`, "invalid site: monster"},
		{"bad job type", `{"site_type":["indeed"],"job_type":"gig"}`, "invalid job_type: gig"},
		{"bad country", `{"site_type":["indeed"],"country":"atlantis"}`, "invalid country: atlantis"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, testConfig(), 10)
			rec := h.do(http.MethodPost, "/scrape", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tc.want, decode(t, rec)["error"])

			count, err := h.store.CountTasks(context.Background())
			require.NoError(t, err)
			require.Zero(t, count)
		})
	}
}

func TestServer_SubmitScrape_QueueFull(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 1)
	require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`).Code)

	rec := h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	status := h.do(http.MethodGet, "/status/task-2", "")
	require.Equal(t, http.StatusOK, status.Code)
	require.Equal(t, "failed", decode(t, status)["status"])
}

func TestServer_SubmitStandard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)

	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/scrape/standard", `{}`).Code)
	require.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/scrape/standard", `{"name":"missing"}`).Code)

	rec := h.do(http.MethodPost, "/scrape/standard", `{"name":"japan-go"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	item, err := h.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "golang", item.Request.SearchTerm)
	require.Equal(t, 5, item.Request.ResultsWanted)
}

func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10, "t-processing", "t-completed", "t-failed")
	for range 3 {
		require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`).Code)
	}
	ctx := context.Background()
	require.NoError(t, h.store.CompleteTask(ctx, "t-completed", []scraper.JobPost{{
		Site:       scraper.SiteJapanDev,
		Title:      "Backend Engineer",
		JobURL:     "https://japan-dev.com/jobs/acme/backend",
		DatePosted: "2026-01-23",
	}}))
	require.NoError(t, h.store.FailTask(ctx, "t-failed", "browser crashed"))

	rec := h.do(http.MethodGet, "/status/t-processing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"status": "processing"}, decode(t, rec))

	rec = h.do(http.MethodGet, "/status/t-completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "completed", body["status"])
	require.EqualValues(t, 1, body["count"])
	data := body["data"].([]any)
	require.Equal(t, "Backend Engineer", data[0].(map[string]any)["title"])

	rec = h.do(http.MethodGet, "/status/t-failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"status": "failed", "error": "browser crashed"}, decode(t, rec))

	rec = h.do(http.MethodGet, "/status/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Task ID not found", decode(t, rec)["error"])
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)
	rec := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"status": "ok", "jobs_in_memory": float64(0)}, decode(t, rec))

	h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`)
	h.do(http.MethodPost, "/scrape", `{"site_type":["tokyodev"]}`)
	rec = h.do(http.MethodGet, "/health", "")
	require.EqualValues(t, 2, decode(t, rec)["jobs_in_memory"])

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "").Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)
	h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`)

	rec := h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "jobspy_tasks_total")
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	h := newHarness(t, cfg, 10)

	require.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`).Code)
	require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/status/task-1", "").Code)
	require.Equal(t, http.StatusAccepted,
		h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`, "X-API-Key", "secret").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/status/task-1?api_key=secret", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "").Code)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)
	rec := h.do(http.MethodGet, "/healthz", "", "X-Request-ID", "req-123")
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = h.do(http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type panickingTasks struct{}

func (panickingTasks) Submit(context.Context, scraper.RawRequest) (string, error) {
	panic("store exploded")
}

func (panickingTasks) Status(context.Context, string) (scraper.TaskView, error) {
	return scraper.TaskView{}, scraper.ErrTaskNotFound
}

func (panickingTasks) Count(context.Context) (int, error) { return 0, nil }

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	server := NewServer(panickingTasks{}, nil, testConfig(), zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/scrape", bytes.NewBufferString(`{"site_type":["japandev"]}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_TaskEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), 10)
	require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/scrape", `{"site_type":["japandev"]}`).Code)

	rec := h.do(http.MethodGet, "/status/task-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"task_id":"task-1","events":[]}`, rec.Body.String())

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, h.progress.AppendEvents(context.Background(), []progress.Event{
		{TaskID: "task-1", TS: ts, Stage: progress.StageTaskStart},
		{TaskID: "task-1", TS: ts, Stage: progress.StageSiteDone, Site: "japandev", Outcome: "success", Jobs: 2},
	}))
	rec = h.do(http.MethodGet, "/status/task-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode(t, rec)["events"].([]any)
	require.Len(t, events, 2)
	require.Equal(t, "SITE_DONE", events[1].(map[string]any)["stage"])
	require.EqualValues(t, 2, events[1].(map[string]any)["jobs"])

	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/status/unknown/events", "").Code)
}

func TestServer_EventsRouteNeedsProgressStore(t *testing.T) {
	t.Parallel()

	server := NewServer(panickingTasks{}, nil, testConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/task-1/events", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
