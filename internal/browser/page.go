package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// Page is one tab of a Session. Every operation is bounded by a timeout.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu        sync.Mutex
	mouseX    float64
	mouseY    float64
	closeOnce sync.Once
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector is visible or timeout elapses.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Content returns the rendered document HTML.
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, p.timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// MoveMouse drags the pointer from its last position to (x, y) in steps.
func (p *Page) MoveMouse(ctx context.Context, x, y float64, steps int) error {
	p.mu.Lock()
	fromX, fromY := p.mouseX, p.mouseY
	p.mu.Unlock()

	path := mousePath(fromX, fromY, x, y, steps)
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		for _, pt := range path {
			if err := input.DispatchMouseEvent(input.MouseMoved, pt[0], pt[1]).Do(ctx); err != nil {
				return fmt.Errorf("dispatch mouse move: %w", err)
			}
		}
		return nil
	})
	if err := p.run(ctx, p.timeout, action); err != nil {
		return err
	}
	p.mu.Lock()
	p.mouseX, p.mouseY = x, y
	p.mu.Unlock()
	return nil
}

// Close releases the tab. Safe to call more than once.
func (p *Page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(p.ctx); cerr != nil {
			err = fmt.Errorf("close tab: %w", cerr)
		}
		p.cancel()
	})
	return err
}

// run executes actions on the tab, ending early when either ctx or the timeout finishes.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	opCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// mousePath interpolates steps points ending exactly at (toX, toY).
func mousePath(fromX, fromY, toX, toY float64, steps int) [][2]float64 {
	if steps < 1 {
		steps = 1
	}
	path := make([][2]float64, 0, steps)
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		path = append(path, [2]float64{fromX + (toX-fromX)*frac, fromY + (toY-fromY)*frac})
	}
	return path
}
