// Package linkcheck probes scraped job links with HEAD requests and reports the broken ones.
package linkcheck

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/metrics"
)

const indexKey = "linkcheck.index"

var errNoResponse = errors.New("no response")

// Entry is one link to probe.
type Entry struct {
	URL     string `json:"url"`
	Company string `json:"company"`
}

// Result is the outcome of probing one Entry.
type Result struct {
	Entry
	Status int
	Err    error
}

// Broken reports whether the link answered with an error status or not at all.
func (r Result) Broken() bool {
	return r.Err != nil || r.Status >= http.StatusBadRequest
}

// Detail is the status code, or the transport error when there was no response.
func (r Result) Detail() string {
	if r.Err != nil && r.Status == 0 {
		return r.Err.Error()
	}
	return strconv.Itoa(r.Status)
}

// Config controls the collector.
type Config struct {
	Concurrency int
	Timeout     time.Duration
	UserAgent   string
}

// Checker runs HEAD probes through a colly collector.
type Checker struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

// New builds a Checker. Zero values fall back to 20 parallel probes, 10s and Mozilla/5.0.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cfg: cfg, transport: newHTTPTransport(), logger: logger}
}

// Check probes every entry and returns results in input order.
func (c *Checker) Check(ctx context.Context, entries []Entry) ([]Result, error) {
	results := make([]Result, len(entries))
	seen := make([]bool, len(entries))
	var mu sync.Mutex
	record := func(i int, status int, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[i].Status = status
		results[i].Err = err
		seen[i] = true
	}

	collector := c.newCollector(ctx)
	collector.OnResponse(func(r *colly.Response) {
		if i, ok := requestIndex(r.Ctx); ok {
			record(i, r.StatusCode, nil)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if i, ok := requestIndex(r.Ctx); ok {
			record(i, r.StatusCode, err)
		}
	})

	for i, entry := range entries {
		results[i].Entry = entry
		reqCtx := colly.NewContext()
		reqCtx.Put(indexKey, i)
		if err := collector.Request(http.MethodHead, entry.URL, nil, reqCtx, nil); err != nil {
			record(i, 0, err)
		}
	}
	collector.Wait()

	for i := range results {
		if !seen[i] {
			results[i].Err = errNoResponse
		}
		metrics.ObserveLinkCheck(results[i].URL, results[i].Broken())
		if results[i].Broken() {
			c.logger.Info("broken link",
				zap.String("company", results[i].Company),
				zap.String("url", results[i].URL),
				zap.String("status", results[i].Detail()),
			)
		}
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("link check canceled: %w", err)
	}
	return results, nil
}

func (c *Checker) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(c.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(&contextTransport{ctx: ctx, base: c.transport})
	if err := collector.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: c.cfg.Concurrency}); err != nil {
		c.logger.Warn("set link check limit", zap.Error(err))
	}
	return collector
}

func requestIndex(ctx *colly.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	i, ok := ctx.GetAny(indexKey).(int)
	return i, ok
}

// contextTransport binds every probe to the caller's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // job boards with broken chains still count as reachable
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// ReadEntries decodes a JSON array of {url, company} objects.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode link entries: %w", err)
	}
	return entries, nil
}

// WriteReport writes one "url | status" line per broken result and returns how many it wrote.
func WriteReport(w io.Writer, results []Result) (int, error) {
	n := 0
	for _, r := range results {
		if !r.Broken() {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s | %s\n", r.URL, r.Detail()); err != nil {
			return n, fmt.Errorf("write report: %w", err)
		}
		n++
	}
	return n, nil
}
