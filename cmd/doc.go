// Package cmd defines the jobspy command line: serve runs the scrape service and linkcheck
// audits scraped job links.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts scrape requests, answers status polls, and exposes health and
//     Prometheus metrics. Requests are normalized into scraper.Request and validated against the site
//     registry before a task is recorded.
//   - Task lifecycle: internal/tasks.Manager records each task as processing in the in-memory store and
//     enqueues it on a bounded queue sized by scraper.queue_depth. A fixed worker pool sized by
//     scraper.concurrency drains the queue; each task ends completed or failed exactly once.
//   - Dispatch: internal/aggregator runs the requested site adapters with bounded parallelism and a per-site
//     budget. A failing site is logged and contributes nothing.
//   - Browser: every adapter run gets its own fingerprinted Chrome via chromedp, optionally behind an
//     authenticated proxy, with heavy resources blocked. internal/challenge waits out interstitials while
//     moving the pointer.
//   - Schedules: robfig/cron submits named standard requests on their configured specs.
//
// Quick checklist:
//   - Configure env vars: JOBSPY_SERVER_PORT, JOBSPY_SCRAPER_CONCURRENCY, JOBSPY_BROWSER_EXEC_PATH,
//     JOBSPY_AUTH_ENABLED and JOBSPY_AUTH_API_KEY, or pass --config config.yaml.
//   - Run locally: go run . serve --config config.yaml
//   - Audit links: go run . linkcheck -i remote_jobs.json -o broken_links.txt
package cmd
