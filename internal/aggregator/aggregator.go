// Package aggregator fans a scrape request out to the site adapters and merges their results.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// AdapterSource resolves the adapter for a site.
type AdapterSource interface {
	Lookup(site scraper.Site) (scraper.Adapter, bool)
}

// Config bounds the fan-out.
type Config struct {
	// Parallelism caps concurrently running adapters. Zero or less means one.
	Parallelism int
	// SiteBudget bounds each adapter run. Zero disables the per-site deadline.
	SiteBudget time.Duration
	// Emitter receives SITE_START and SITE_DONE events for contexts tagged with a task.
	Emitter progress.Emitter
}

// Aggregator runs the requested adapters and concatenates their postings.
type Aggregator struct {
	adapters AdapterSource
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Aggregator.
func New(adapters AdapterSource, cfg Config, logger *zap.Logger) *Aggregator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{adapters: adapters, cfg: cfg, logger: logger}
}

// Dispatch scrapes every requested site and returns the postings in site-submission
// order. Unregistered sites are skipped with a warning. A failing adapter contributes
// nothing and does not fail the dispatch.
func (a *Aggregator) Dispatch(ctx context.Context, req scraper.Request) ([]scraper.JobPost, error) {
	if len(req.Sites) == 0 {
		return nil, scraper.ErrNoSites
	}

	results := make([][]scraper.JobPost, len(req.Sites))
	var g errgroup.Group
	g.SetLimit(a.cfg.Parallelism)
	for i, site := range req.Sites {
		adapter, ok := a.adapters.Lookup(site)
		if !ok {
			a.logger.Warn("no adapter registered for site", zap.String("site", string(site)))
			continue
		}
		g.Go(func() error {
			results[i] = a.runSite(ctx, adapter, req)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	total := 0
	for _, jobs := range results {
		total += len(jobs)
	}
	out := make([]scraper.JobPost, 0, total)
	for _, jobs := range results {
		out = append(out, jobs...)
	}
	return out, nil
}

func (a *Aggregator) runSite(ctx context.Context, adapter scraper.Adapter, req scraper.Request) []scraper.JobPost {
	site := adapter.Site()
	logger := a.logger.With(zap.String("site", string(site)))
	start := time.Now()
	a.emit(ctx, progress.Event{Stage: progress.StageSiteStart, Site: string(site), TS: start})

	if a.cfg.SiteBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.SiteBudget)
		defer cancel()
	}

	resp, err := a.scrape(ctx, adapter, req.Clone())
	duration := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		logger.Error("site scrape failed", zap.Error(err), zap.Duration("duration", duration))
		metrics.ObserveSiteScrape(string(site), outcome, 0, duration)
		a.emit(ctx, progress.Event{
			Stage:   progress.StageSiteDone,
			Site:    string(site),
			Outcome: outcome,
			Dur:     duration,
			Note:    err.Error(),
			TS:      time.Now(),
		})
		return nil
	}
	logger.Info("site scrape finished", zap.Int("jobs", len(resp.Jobs)), zap.Duration("duration", duration))
	metrics.ObserveSiteScrape(string(site), "success", len(resp.Jobs), duration)
	a.emit(ctx, progress.Event{
		Stage:   progress.StageSiteDone,
		Site:    string(site),
		Outcome: "success",
		Jobs:    len(resp.Jobs),
		Dur:     duration,
		TS:      time.Now(),
	})
	return resp.Jobs
}

func (a *Aggregator) emit(ctx context.Context, evt progress.Event) {
	taskID, ok := progress.TaskFromContext(ctx)
	if !ok {
		return
	}
	evt.TaskID = taskID
	progress.Emit(a.cfg.Emitter, evt)
}

// scrape runs one adapter, converting a panic into an AdapterError.
func (a *Aggregator) scrape(ctx context.Context, adapter scraper.Adapter, req scraper.Request) (resp scraper.JobResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &scraper.AdapterError{Site: adapter.Site(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	resp, err = adapter.Scrape(ctx, req, req.Options)
	if err != nil {
		return scraper.JobResponse{}, &scraper.AdapterError{Site: adapter.Site(), Err: err}
	}
	return resp, nil
}
