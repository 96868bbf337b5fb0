package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []scraper.RawRequest
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, raw scraper.RawRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.reqs = append(r.reqs, raw)
	return "task-1", nil
}

func TestEntriesFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		StandardRequests: map[string]scraper.RawRequest{
			"japan-go": {SiteType: []string{"japandev"}, SearchTerm: "golang"},
		},
		Schedules: []config.ScheduleConfig{{Name: "nightly", Spec: "@daily", Request: "japan-go"}},
	}
	entries, err := EntriesFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, []Entry{{
		Name:    "nightly",
		Spec:    "@daily",
		Request: scraper.RawRequest{SiteType: []string{"japandev"}, SearchTerm: "golang"},
	}}, entries)

	cfg.Schedules[0].Request = "missing"
	_, err = EntriesFromConfig(cfg)
	require.ErrorContains(t, err, `unknown standard request "missing"`)
}

func TestScheduler_StartRegistersEntries(t *testing.T) {
	t.Parallel()

	s := New(&recordingSubmitter{}, []Entry{
		{Name: "a", Spec: "@hourly"},
		{Name: "b", Spec: "*/5 * * * *"},
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 2, s.Entries())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := New(&recordingSubmitter{}, []Entry{{Name: "broken", Spec: "every tuesday"}}, zap.NewNop())

	err := s.Start(context.Background())
	require.ErrorContains(t, err, "schedule broken")
	require.Zero(t, s.Entries())
}

func TestScheduler_FireSubmitsRequest(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	s := New(sub, nil, zap.NewNop())
	raw := scraper.RawRequest{SiteType: []string{"tokyodev"}, SearchTerm: "rust"}

	s.fire(context.Background(), Entry{Name: "rust", Spec: "@daily", Request: raw})

	require.Equal(t, []scraper.RawRequest{raw}, sub.reqs)
}

func TestScheduler_FireLogsFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	s := New(&recordingSubmitter{err: errors.New("queue full")}, nil, zap.New(core))

	s.fire(context.Background(), Entry{Name: "nightly"})

	entries := logs.FilterMessage("scheduled submit failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "nightly", entries[0].ContextMap()["schedule"])
}
