// Package scheduler submits configured standard requests on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Submitter queues a scrape request.
type Submitter interface {
	Submit(ctx context.Context, raw scraper.RawRequest) (string, error)
}

// Entry is one named request fired on a cron spec.
type Entry struct {
	Name    string
	Spec    string
	Request scraper.RawRequest
}

// Scheduler wraps robfig/cron and submits each entry when it fires.
type Scheduler struct {
	cron    *cron.Cron
	tasks   Submitter
	entries []Entry
	logger  *zap.Logger
}

// EntriesFromConfig resolves schedules against the standard request templates.
func EntriesFromConfig(cfg config.Config) ([]Entry, error) {
	entries := make([]Entry, 0, len(cfg.Schedules))
	for _, sc := range cfg.Schedules {
		raw, ok := cfg.StandardRequests[sc.Request]
		if !ok {
			return nil, fmt.Errorf("schedule %s: unknown standard request %q", sc.Name, sc.Request)
		}
		entries = append(entries, Entry{Name: sc.Name, Spec: sc.Spec, Request: raw})
	}
	return entries, nil
}

// New creates a Scheduler for entries.
func New(tasks Submitter, entries []Entry, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	stdLog, err := zap.NewStdLogAt(logger.Named("cron"), zap.WarnLevel)
	if err != nil {
		stdLog = zap.NewStdLog(logger.Named("cron"))
	}
	cronLogger := cron.PrintfLogger(stdLog)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		tasks:   tasks,
		entries: entries,
		logger:  logger,
	}
}

// Start registers every entry and starts the cron loop. Submissions use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	var errs []error
	for _, entry := range s.entries {
		if _, err := s.cron.AddFunc(entry.Spec, func() { s.fire(ctx, entry) }); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", entry.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.entries)))
	return nil
}

// Stop halts the cron loop and waits for running submissions or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Entries reports how many schedules are registered with the cron loop.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) fire(ctx context.Context, entry Entry) {
	logger := s.logger.With(zap.String("schedule", entry.Name))
	id, err := s.tasks.Submit(ctx, entry.Request)
	if err != nil {
		logger.Error("scheduled submit failed", zap.Error(err))
		return
	}
	logger.Info("scheduled task submitted", zap.String("task_id", id))
}
