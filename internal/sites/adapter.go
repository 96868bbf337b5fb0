// Package sites holds the site adapters and the registry the dispatcher consults.
package sites

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/browser"
	"github.com/JakeFAU/jobspy-server/internal/extract"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Defaults apply when a request's options bag leaves a setting unset.
type Defaults struct {
	UserAgent        string
	BlockResources   bool
	ChallengeTimeout time.Duration
}

// HookBuilder derives the per-run extraction hooks from decoded options.
type HookBuilder func(opts Options) (extract.Hooks, error)

// BrowserAdapter scrapes one site by running an extraction pipeline inside a fresh
// browser session.
type BrowserAdapter struct {
	site     scraper.Site
	pipeline *extract.Pipeline
	sessions scraper.SessionFactory
	defaults Defaults
	hooks    HookBuilder
	logger   *zap.Logger
}

// NewBrowserAdapter wires a pipeline to a session factory.
func NewBrowserAdapter(
	pipeline *extract.Pipeline,
	sessions scraper.SessionFactory,
	defaults Defaults,
	hooks HookBuilder,
	logger *zap.Logger,
) *BrowserAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserAdapter{
		site:     pipeline.Profile().Site,
		pipeline: pipeline,
		sessions: sessions,
		defaults: defaults,
		hooks:    hooks,
		logger:   logger,
	}
}

// Site implements scraper.Adapter.
func (a *BrowserAdapter) Site() scraper.Site {
	return a.site
}

// ValidateOptions checks the options bag without launching a browser.
func (a *BrowserAdapter) ValidateOptions(raw scraper.Options) error {
	_, _, err := a.resolve(raw)
	return err
}

// Scrape implements scraper.Adapter. The session is closed before returning.
func (a *BrowserAdapter) Scrape(ctx context.Context, req scraper.Request, raw scraper.Options) (scraper.JobResponse, error) {
	opts, hooks, err := a.resolve(raw)
	if err != nil {
		return scraper.JobResponse{}, err
	}

	cfg := scraper.SessionConfig{
		UserAgent:      a.defaults.UserAgent,
		Proxy:          opts.Proxy(),
		BlockResources: a.defaults.BlockResources,
		Timeout:        req.Timeout(),
	}
	if opts.UserAgent != "" {
		cfg.UserAgent = opts.UserAgent
	}
	if opts.BlockResources != nil {
		cfg.BlockResources = *opts.BlockResources
	}

	session, err := a.sessions.NewSession(ctx, cfg)
	if err != nil {
		return scraper.JobResponse{}, fmt.Errorf("launch session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Debug("session close failed", zap.Error(cerr))
		}
	}()

	jobs, err := a.pipeline.Extract(ctx, session, req, hooks)
	if err != nil {
		return scraper.JobResponse{}, err
	}
	return scraper.JobResponse{Jobs: jobs}, nil
}

func (a *BrowserAdapter) resolve(raw scraper.Options) (Options, extract.Hooks, error) {
	opts, err := DecodeOptions(a.site, raw)
	if err != nil {
		return Options{}, extract.Hooks{}, err
	}
	if proxy := opts.Proxy(); proxy != "" {
		if _, err := browser.ParseProxy(proxy); err != nil {
			return Options{}, extract.Hooks{}, err
		}
	}
	var hooks extract.Hooks
	if a.hooks != nil {
		if hooks, err = a.hooks(opts); err != nil {
			return Options{}, extract.Hooks{}, err
		}
	}
	hooks.ChallengeTimeout = a.defaults.ChallengeTimeout
	if opts.ChallengeTimeoutSeconds > 0 {
		hooks.ChallengeTimeout = time.Duration(opts.ChallengeTimeoutSeconds) * time.Second
	}
	return opts, hooks, nil
}
