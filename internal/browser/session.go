// Package browser launches fingerprinted Chrome sessions via chromedp.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/logging"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Config controls how sessions launch Chrome.
type Config struct {
	Headless       bool
	ExecPath       string
	NoSandbox      bool
	DefaultTimeout time.Duration
	Fingerprint    Fingerprint
}

// Factory implements scraper.SessionFactory. Every session gets its own browser process.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if cfg.Fingerprint.UserAgent == "" {
		cfg.Fingerprint = DefaultFingerprint()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// NewSession parses the proxy, launches Chrome, and returns a session bound to ctx.
// A malformed proxy fails before any browser starts.
func (f *Factory) NewSession(ctx context.Context, sc scraper.SessionConfig) (scraper.Session, error) {
	var proxy Proxy
	if sc.Proxy != "" {
		parsed, err := ParseProxy(sc.Proxy)
		if err != nil {
			return nil, err
		}
		proxy = parsed
	}
	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = f.cfg.DefaultTimeout
	}
	fp := f.cfg.Fingerprint.WithUserAgent(sc.UserAgent)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(fp, proxy)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logging.Printf(f.logger)))
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	f.logger.Debug("browser session started",
		zap.String("user_agent", fp.UserAgent),
		zap.Bool("proxy", proxy.Server != ""),
		zap.Bool("block_resources", sc.BlockResources),
	)
	return &Session{
		ctx:            browserCtx,
		cancel:         browserCancel,
		allocCancel:    allocCancel,
		fp:             fp,
		proxy:          proxy,
		blockResources: sc.BlockResources,
		timeout:        timeout,
		logger:         f.logger,
	}, nil
}

func (f *Factory) allocatorOptions(fp Fingerprint, proxy Proxy) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(int(fp.Width), int(fp.Height)),
		chromedp.Flag("lang", fp.Locale),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if f.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if proxy.Server != "" {
		opts = append(opts, chromedp.ProxyServer(proxy.Server))
	}
	return opts
}

// Session is one fingerprinted browser.
type Session struct {
	ctx            context.Context
	cancel         context.CancelFunc
	allocCancel    context.CancelFunc
	fp             Fingerprint
	proxy          Proxy
	blockResources bool
	timeout        time.Duration
	logger         *zap.Logger
	closeOnce      sync.Once
}

// NewPage opens a tab with the session fingerprint applied.
func (s *Session) NewPage(ctx context.Context) (scraper.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	if s.interceptRequests() {
		chromedp.ListenTarget(tabCtx, s.listen(tabCtx))
	}
	// The first Run allocates the tab and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p := &Page{ctx: tabCtx, cancel: tabCancel, timeout: s.timeout}
	if err := p.run(ctx, s.timeout, s.setupAction()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("configure tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(s.ctx); cerr != nil {
			err = fmt.Errorf("close browser: %w", cerr)
		}
		s.cancel()
		s.allocCancel()
	})
	return err
}

func (s *Session) interceptRequests() bool {
	return s.blockResources || s.proxy.HasCredentials()
}

func (s *Session) setupAction() chromedp.Action {
	fp := s.fp
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fp.AcceptLanguage).
			WithPlatform(fp.Platform).
			Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(fp.Width, fp.Height, 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if err := emulation.SetLocaleOverride().WithLocale(fp.Locale).Do(ctx); err != nil {
			return fmt.Errorf("set locale: %w", err)
		}
		if err := emulation.SetTimezoneOverride(fp.TimezoneID).Do(ctx); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
		if err := emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: fp.ColorScheme},
		}).Do(ctx); err != nil {
			return fmt.Errorf("set color scheme: %w", err)
		}
		if err := network.SetExtraHTTPHeaders(fp.ExtraHeaders()).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		if _, err := cdppage.AddScriptToEvaluateOnNewDocument(webdriverPatch).Do(ctx); err != nil {
			return fmt.Errorf("install webdriver patch: %w", err)
		}
		if s.interceptRequests() {
			if err := fetch.Enable().
				WithPatterns([]*fetch.RequestPattern{{URLPattern: "*", RequestStage: fetch.RequestStageRequest}}).
				WithHandleAuthRequests(s.proxy.HasCredentials()).
				Do(ctx); err != nil {
				return fmt.Errorf("enable request interception: %w", err)
			}
		}
		return nil
	})
}

func (s *Session) listen(tabCtx context.Context) func(ev any) {
	return func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go s.handlePaused(tabCtx, e)
		case *fetch.EventAuthRequired:
			go s.handleAuth(tabCtx, e)
		}
	}
}

func (s *Session) handlePaused(tabCtx context.Context, e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)
	var err error
	if s.blockResources && ShouldBlock(e.ResourceType) {
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(e.RequestID).Do(execCtx)
	}
	if err != nil && tabCtx.Err() == nil {
		s.logger.Debug("request interception failed", zap.String("url", e.Request.URL), zap.Error(err))
	}
}

func (s *Session) handleAuth(tabCtx context.Context, e *fetch.EventAuthRequired) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)
	resp := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: s.proxy.Username,
		Password: s.proxy.Password,
	}
	if err := fetch.ContinueWithAuth(e.RequestID, resp).Do(execCtx); err != nil && tabCtx.Err() == nil {
		s.logger.Debug("proxy auth failed", zap.Error(err))
	}
}

// ShouldBlock reports whether a resource type is dropped when blocking is on.
// Fonts and stylesheets always load.
func ShouldBlock(rt network.ResourceType) bool {
	return rt == network.ResourceTypeImage || rt == network.ResourceTypeMedia
}
