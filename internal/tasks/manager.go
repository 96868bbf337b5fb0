// Package tasks owns the lifecycle of scrape tasks from submission to terminal state.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// DefaultEnqueueTimeout bounds how long Submit waits on a full queue.
const DefaultEnqueueTimeout = 5 * time.Second

// RequestValidator rejects requests an adapter could never run.
type RequestValidator interface {
	ValidateRequest(req scraper.Request) error
}

// Config tunes submission.
type Config struct {
	Defaults       scraper.Defaults
	EnqueueTimeout time.Duration
}

// Manager accepts requests, records tasks, and answers status queries.
type Manager struct {
	store     scraper.TaskStore
	queue     scraper.Queue
	ids       scraper.IDGenerator
	clock     scraper.Clock
	validator RequestValidator
	cfg       Config
	logger    *zap.Logger
}

// NewManager constructs a Manager. validator may be nil.
func NewManager(
	store scraper.TaskStore,
	queue scraper.Queue,
	ids scraper.IDGenerator,
	clock scraper.Clock,
	validator RequestValidator,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = DefaultEnqueueTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		queue:     queue,
		ids:       ids,
		clock:     clock,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Defaults returns the values applied to fields a raw request leaves unset.
func (m *Manager) Defaults() scraper.Defaults {
	return m.cfg.Defaults
}

// Submit validates a raw request and queues it. It returns without waiting for any
// scraping.
func (m *Manager) Submit(ctx context.Context, raw scraper.RawRequest) (string, error) {
	req, err := raw.Normalize(m.cfg.Defaults)
	if err != nil {
		return "", err
	}
	return m.SubmitRequest(ctx, req)
}

// SubmitRequest queues an already-normalized request under a fresh task id. A task
// that cannot be queued is failed before the error is returned.
func (m *Manager) SubmitRequest(ctx context.Context, req scraper.Request) (string, error) {
	if len(req.Sites) == 0 {
		return "", &scraper.ValidationError{Field: "site_type", Err: scraper.ErrNoSites}
	}
	if m.validator != nil {
		if err := m.validator.ValidateRequest(req); err != nil {
			return "", err
		}
	}

	id, err := m.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("allocate task id: %w", err)
	}
	now := m.clock.Now()
	req = req.Clone()
	if err := m.store.CreateTask(ctx, scraper.Task{
		ID:        id,
		Status:    scraper.TaskStatusProcessing,
		Request:   req,
		Submitted: now,
	}); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	logger := m.logger.With(zap.String("task_id", id))
	enqueueCtx, cancel := context.WithTimeout(ctx, m.cfg.EnqueueTimeout)
	defer cancel()
	if err := m.queue.Enqueue(enqueueCtx, scraper.QueueItem{TaskID: id, Request: req, Submitted: now.Unix()}); err != nil {
		logger.Error("enqueue task failed", zap.Error(err))
		msg := fmt.Sprintf("enqueue task: %v", err)
		if ferr := m.store.FailTask(context.WithoutCancel(ctx), id, msg); ferr != nil {
			logger.Error("fail unqueued task", zap.Error(ferr))
		}
		metrics.ObserveTask("rejected")
		return "", fmt.Errorf("enqueue task %s: %w", id, err)
	}

	metrics.ObserveTask("submitted")
	logger.Info("task submitted", zap.Int("sites", len(req.Sites)), zap.String("search_term", req.SearchTerm))
	return id, nil
}

// Status returns the client view of a task.
func (m *Manager) Status(ctx context.Context, id string) (scraper.TaskView, error) {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, scraper.ErrTaskNotFound) {
			return scraper.TaskView{}, scraper.ErrTaskNotFound
		}
		return scraper.TaskView{}, fmt.Errorf("get task: %w", err)
	}
	return task.View(), nil
}

// Count reports how many tasks the store holds.
func (m *Manager) Count(ctx context.Context) (int, error) {
	n, err := m.store.CountTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
