// Package server builds the scrape service from configuration and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/aggregator"
	"github.com/JakeFAU/jobspy-server/internal/api"
	"github.com/JakeFAU/jobspy-server/internal/browser"
	"github.com/JakeFAU/jobspy-server/internal/challenge"
	"github.com/JakeFAU/jobspy-server/internal/clock/system"
	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/dispatcher"
	"github.com/JakeFAU/jobspy-server/internal/id/uuid"
	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/progress"
	progresssinks "github.com/JakeFAU/jobspy-server/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/jobspy-server/internal/queue/memory"
	"github.com/JakeFAU/jobspy-server/internal/scheduler"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
	"github.com/JakeFAU/jobspy-server/internal/sites"
	memoryStorage "github.com/JakeFAU/jobspy-server/internal/storage/memory"
	"github.com/JakeFAU/jobspy-server/internal/store"
	"github.com/JakeFAU/jobspy-server/internal/tasks"
)

const defaultShutdownTimeout = 10 * time.Second

// App contains the service's long-lived dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	registry  *sites.Registry
	manager   *tasks.Manager
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
	scheduler *scheduler.Scheduler
	progress  *progress.Hub
}

// Build creates the service's dependencies. Nothing is started until Run.
func Build(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	clock, err := system.NewIn(cfg.Scraper.Timezone)
	if err != nil {
		return nil, fmt.Errorf("clock init failed: %w", err)
	}

	entries, err := scheduler.EntriesFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}

	app := &App{cfg: cfg, logger: logger}
	app.registry = buildRegistry(cfg, clock, logger)
	logger.Info("site adapters registered", zap.Any("sites", app.registry.Sites()))

	progressRepo := app.setupProgress()

	taskStore := memoryStorage.NewTaskStore(clock)
	app.queue = queueMemory.NewQueue(cfg.Scraper.QueueDepth)
	app.manager = tasks.NewManager(
		taskStore,
		app.queue,
		uuid.New(),
		clock,
		app.registry,
		tasks.Config{Defaults: cfg.RequestDefaults(), EnqueueTimeout: cfg.EnqueueTimeout()},
		logger.Named("tasks"),
	)

	var emitter progress.Emitter
	if app.progress != nil {
		emitter = app.progress
	}
	agg := aggregator.New(app.registry, aggregator.Config{
		Parallelism: cfg.Scraper.SiteParallelism,
		SiteBudget:  cfg.SiteBudget(),
		Emitter:     emitter,
	}, logger.Named("aggregator"))
	app.dispatch = dispatcher.NewPool(app.queue, taskStore, agg, emitter, cfg.Scraper.Concurrency, logger.Named("worker"))
	logger.Info("worker pool configured",
		zap.Int("workers", app.dispatch.Size()),
		zap.Int("queue_depth", cfg.Scraper.QueueDepth),
		zap.Int("site_parallelism", cfg.Scraper.SiteParallelism),
		zap.Duration("site_budget", cfg.SiteBudget()),
	)

	if len(entries) > 0 {
		app.scheduler = scheduler.New(app.manager, entries, logger.Named("scheduler"))
	}

	app.apiServer = api.NewServer(app.manager, progressRepo, cfg, logger.Named("api"))
	return app, nil
}

// setupProgress starts the progress hub. It returns nil when tracking is disabled.
func (a *App) setupProgress() store.ProgressRepository {
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return nil
	}
	repo := memoryStorage.NewProgressStore(a.cfg.Progress.EventsPerTask)
	sinkList := []progress.Sink{progresssinks.NewStoreSink(repo, a.logger.Named("progress_store"))}
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   a.cfg.ProgressBatchWait(),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progress = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return repo
}

func buildRegistry(cfg config.Config, clock scraper.Clock, logger *zap.Logger) *sites.Registry {
	fingerprint := browser.DefaultFingerprint().WithUserAgent(cfg.Browser.UserAgent)
	factory := browser.NewFactory(browser.Config{
		Headless:       cfg.Browser.Headless,
		ExecPath:       cfg.Browser.ExecPath,
		NoSandbox:      cfg.Browser.NoSandbox,
		DefaultTimeout: time.Duration(cfg.Scraper.RequestTimeoutSeconds) * time.Second,
		Fingerprint:    fingerprint,
	}, logger.Named("browser"))
	monitor := challenge.NewMonitor(challenge.NewDetector(), challenge.Config{
		PollInterval: cfg.ChallengePoll(),
		Timeout:      cfg.ChallengeTimeout(),
	}, logger.Named("challenge"))
	return sites.NewDefaultRegistry(sites.Deps{
		Sessions:   factory,
		Challenges: monitor,
		Clock:      clock,
		Defaults: sites.Defaults{
			UserAgent:        fingerprint.UserAgent,
			BlockResources:   cfg.Browser.BlockResources,
			ChallengeTimeout: cfg.ChallengeTimeout(),
		},
		Logger: logger,
	})
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the workers, the scheduler, and the HTTP server, and blocks until ctx is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			stop()
			<-workersDone
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers still running at shutdown deadline")
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return errors.Join(fmt.Errorf("http server: %w", err), closeErr)
	default:
		return closeErr
	}
}

// Close stops the scheduler and the queue, then flushes progress events.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.queue.Close()
	if a.progress != nil {
		if err := a.progress.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
