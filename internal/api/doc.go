// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - POST /scrape and /scrape/standard queue a scrape task and return its id.
//   - GET /status/{task_id} reports a task's state and, once completed, its postings.
//   - GET /status/{task_id}/events lists the task's lifecycle events when progress tracking is on.
//   - GET /health reports how many tasks are held in memory.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
