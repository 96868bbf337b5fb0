// Package worker implements the task execution loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Runner scrapes every site named by a request.
type Runner interface {
	Dispatch(ctx context.Context, req scraper.Request) ([]scraper.JobPost, error)
}

// Worker consumes queue items and runs exactly one dispatch per task.
type Worker struct {
	queue  scraper.Queue
	store  scraper.TaskStore
	runner  Runner
	emitter progress.Emitter
	logger  *zap.Logger
}

// New constructs a Worker. emitter may be nil.
func New(
	queue scraper.Queue,
	store scraper.TaskStore,
	runner Runner,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   queue,
		store:   store,
		runner:  runner,
		emitter: emitter,
		logger:  logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if !w.pause(ctx) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", item.TaskID))
		w.ProcessTask(ctx, item)
	}
}

// pause backs off after a dequeue error. It reports false once ctx is done.
func (w *Worker) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(100 * time.Millisecond):
		return true
	}
}

// ProcessTask runs the dispatch for one task and writes its terminal state.
func (w *Worker) ProcessTask(ctx context.Context, item scraper.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("task_id", item.TaskID))
	start := time.Now()
	logger.Info("task started", zap.Int("sites", len(item.Request.Sites)))
	progress.Emit(w.emitter, progress.Event{TaskID: item.TaskID, Stage: progress.StageTaskStart, TS: start})

	jobs, err := w.dispatch(progress.WithTask(ctx, item.TaskID), item.Request)
	w.finish(context.WithoutCancel(ctx), logger, item.TaskID, jobs, err)

	duration := time.Since(start)
	evt := progress.Event{TaskID: item.TaskID, Stage: progress.StageTaskDone, Jobs: len(jobs), Dur: duration, TS: time.Now()}
	if err != nil {
		evt.Stage, evt.Jobs, evt.Note = progress.StageTaskError, 0, err.Error()
	}
	progress.Emit(w.emitter, evt)
	logger.Info("task finished", zap.Duration("duration", duration), zap.Bool("failed", err != nil))
}

func (w *Worker) dispatch(ctx context.Context, req scraper.Request) (jobs []scraper.JobPost, err error) {
	defer func() {
		if r := recover(); r != nil {
			jobs, err = nil, fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	if w.runner == nil {
		return nil, fmt.Errorf("no runner configured")
	}
	return w.runner.Dispatch(ctx, req)
}

// finish is the only place a task leaves processing.
func (w *Worker) finish(ctx context.Context, logger *zap.Logger, taskID string, jobs []scraper.JobPost, err error) {
	if err != nil {
		logger.Error("task failed", zap.Error(err))
		if serr := w.store.FailTask(ctx, taskID, err.Error()); serr != nil {
			logger.Error("fail task update failed", zap.Error(serr))
			return
		}
		metrics.ObserveTask(string(scraper.TaskStatusFailed))
		return
	}
	if serr := w.store.CompleteTask(ctx, taskID, jobs); serr != nil {
		logger.Error("complete task update failed", zap.Error(serr))
		return
	}
	metrics.ObserveTask(string(scraper.TaskStatusCompleted))
	logger.Info("task completed", zap.Int("jobs", len(jobs)))
}
