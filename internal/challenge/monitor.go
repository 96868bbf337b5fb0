package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/metrics"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// ErrChallengeTimeout is returned when an interstitial outlives the wait budget.
var ErrChallengeTimeout = errors.New("challenge interstitial did not clear")

// Region bounds the random pointer targets.
type Region struct {
	MinX, MaxX int
	MinY, MaxY int
}

// Config tunes the monitor.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
	MouseSteps   int
	Region       Region
	MinPause     time.Duration
	MaxPause     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MouseSteps <= 0 {
		c.MouseSteps = 10
	}
	if c.Region == (Region{}) {
		c.Region = Region{MinX: 300, MaxX: 800, MinY: 200, MaxY: 600}
	}
	if c.MinPause <= 0 && c.MaxPause <= 0 {
		c.MinPause = 100 * time.Millisecond
		c.MaxPause = 300 * time.Millisecond
	}
	if c.MaxPause < c.MinPause {
		c.MaxPause = c.MinPause
	}
	return c
}

// Monitor polls a page until the interstitial disappears.
type Monitor struct {
	detector *Detector
	cfg      Config
	logger   *zap.Logger
}

// NewMonitor creates a Monitor.
func NewMonitor(detector *Detector, cfg Config, logger *zap.Logger) *Monitor {
	if detector == nil {
		detector = NewDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{detector: detector, cfg: cfg.withDefaults(), logger: logger}
}

// AwaitClear checks the page immediately and then every poll interval. While the
// interstitial is up it nudges the pointer. Content read errors are ignored until the
// next tick. A non-positive timeout uses the configured default. Page operations run
// under the wait deadline, so a hung read cannot outlast it.
func (m *Monitor) AwaitClear(ctx context.Context, page scraper.Page, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = m.cfg.Timeout
	}
	start := time.Now()
	waitCtx, cancel := context.WithDeadline(ctx, start.Add(timeout))
	defer cancel()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	challenged := false
	for {
		content, err := page.Content(waitCtx)
		if err == nil {
			if !m.detector.Detect(content) {
				if challenged {
					metrics.ObserveChallenge("cleared", time.Since(start))
				}
				return nil
			}
			if !challenged {
				m.logger.Info("challenge interstitial detected")
				challenged = true
			}
			m.nudge(waitCtx, page)
		} else {
			m.logger.Debug("challenge poll read failed", zap.Error(err))
		}

		if waitCtx.Err() != nil {
			return m.expired(ctx, start, timeout)
		}
		select {
		case <-waitCtx.Done():
			return m.expired(ctx, start, timeout)
		case <-ticker.C:
		}
	}
}

// expired reports why the wait ended: the caller's context or the wait budget.
func (m *Monitor) expired(ctx context.Context, start time.Time, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("await challenge clearance: %w", err)
	}
	metrics.ObserveChallenge("timeout", time.Since(start))
	return fmt.Errorf("%w after %s", ErrChallengeTimeout, timeout)
}

// nudge moves the pointer to a random point and pauses briefly. Failures are ignored.
func (m *Monitor) nudge(ctx context.Context, page scraper.Page) {
	r := m.cfg.Region
	x := float64(r.MinX + rand.IntN(r.MaxX-r.MinX+1))
	y := float64(r.MinY + rand.IntN(r.MaxY-r.MinY+1))
	if err := page.MoveMouse(ctx, x, y, m.cfg.MouseSteps); err != nil {
		m.logger.Debug("pointer nudge failed", zap.Error(err))
	}
	pause := m.cfg.MinPause
	if spread := m.cfg.MaxPause - m.cfg.MinPause; spread > 0 {
		pause += rand.N(spread + 1)
	}
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
