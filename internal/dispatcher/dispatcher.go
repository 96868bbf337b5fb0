// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/progress"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
	"github.com/JakeFAU/jobspy-server/internal/worker"
)

// Dispatcher runs a fixed pool of workers that share one task queue.
type Dispatcher struct {
	workers []*worker.Worker
}

// New creates a Dispatcher over already-built workers.
func New(workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// NewPool builds a Dispatcher with n workers sharing one queue, store, runner, and emitter.
func NewPool(
	queue scraper.Queue,
	store scraper.TaskStore,
	runner worker.Runner,
	emitter progress.Emitter,
	n int,
	logger *zap.Logger,
) *Dispatcher {
	if n < 1 {
		n = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := make([]*worker.Worker, 0, n)
	for i := range n {
		workers = append(workers, worker.New(queue, store, runner, emitter, logger.With(zap.String("worker", strconv.Itoa(i)))))
	}
	return New(workers)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

