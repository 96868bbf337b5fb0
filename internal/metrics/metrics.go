// Package metrics exposes Prometheus collectors for the scrape service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal                 *prometheus.CounterVec
	siteScrapesTotal           *prometheus.CounterVec
	siteScrapeDurationSeconds  *prometheus.HistogramVec
	jobsExtractedTotal         *prometheus.CounterVec
	challengeWaitSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	linkChecksTotal            *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobspy_tasks_total",
				Help: "Total number of scrape tasks, labeled by lifecycle event.",
			},
			[]string{"status"},
		)

		siteScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobspy_site_scrapes_total",
				Help: "Total number of per-site scrapes, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		siteScrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobspy_site_scrape_duration_seconds",
				Help:    "Histogram of per-site scrape durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"site"},
		)

		jobsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobspy_jobs_extracted_total",
				Help: "Total number of job postings extracted, labeled by site.",
			},
			[]string{"site"},
		)

		challengeWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobspy_challenge_wait_seconds",
				Help:    "Histogram of time spent waiting on challenge interstitials.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobspy_active_workers",
				Help: "Number of workers currently processing a task.",
			},
		)

		linkChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobspy_link_checks_total",
				Help: "Total number of link health checks, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveTask increments the task counter for a lifecycle event.
func ObserveTask(status string) {
	Init()
	tasksTotal.WithLabelValues(status).Inc()
}

// ObserveSiteScrape records one adapter run.
func ObserveSiteScrape(site, outcome string, jobs int, duration time.Duration) {
	Init()
	siteScrapesTotal.WithLabelValues(site, outcome).Inc()
	siteScrapeDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if jobs > 0 {
		jobsExtractedTotal.WithLabelValues(site).Add(float64(jobs))
	}
}

// ObserveChallenge records how long an interstitial wait took.
func ObserveChallenge(outcome string, duration time.Duration) {
	Init()
	challengeWaitSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLinkCheck records a link health result.
func ObserveLinkCheck(rawURL string, broken bool) {
	Init()
	outcome := "ok"
	if broken {
		outcome = "broken"
	}
	linkChecksTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
