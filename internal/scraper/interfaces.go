package scraper

import (
	"context"
	"time"
)

// TaskStore keeps task records. Terminal writes happen at most once per task.
type TaskStore interface {
	CreateTask(ctx context.Context, task Task) error
	CompleteTask(ctx context.Context, taskID string, jobs []JobPost) error
	FailTask(ctx context.Context, taskID string, errText string) error
	GetTask(ctx context.Context, taskID string) (Task, error)
	CountTasks(ctx context.Context) (int, error)
}

// Queue provides enqueue/dequeue semantics for scrape tasks.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Adapter scrapes one site. Zero results is not an error.
type Adapter interface {
	Site() Site
	Scrape(ctx context.Context, req Request, opts Options) (JobResponse, error)
}

// Page is a single browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Content(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	MoveMouse(ctx context.Context, x, y float64, steps int) error
	Close() error
}

// Session owns one browser with a fixed fingerprint. It is never shared across tasks.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// SessionFactory launches sessions.
type SessionFactory interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}
