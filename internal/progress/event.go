package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage names the lifecycle milestone an Event records.
type Stage string

// Supported stages.
const (
	StageTaskStart Stage = "TASK_START"
	StageTaskDone  Stage = "TASK_DONE"
	StageTaskError Stage = "TASK_ERROR"
	StageSiteStart Stage = "SITE_START"
	StageSiteDone  Stage = "SITE_DONE"
)

// Event is one milestone in a task's run.
type Event struct {
	TaskID string    `json:"task_id"`
	TS     time.Time `json:"ts"`
	Stage  Stage     `json:"stage"`
	// Site scopes SITE_* events.
	Site string `json:"site,omitempty"`
	// Outcome is success, error, or timeout on SITE_DONE.
	Outcome string `json:"outcome,omitempty"`
	// Jobs counts postings returned by a site or by the whole task.
	Jobs int           `json:"jobs,omitempty"`
	Dur  time.Duration `json:"duration_ns,omitempty"`
	// Note carries the error text for failures.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TaskID == "" {
		return errors.New("task id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageTaskStart, StageTaskDone, StageTaskError:
	case StageSiteStart:
		if e.Site == "" {
			return errors.New("site start requires site")
		}
	case StageSiteDone:
		if e.Site == "" {
			return errors.New("site done requires site")
		}
		if e.Outcome == "" {
			return errors.New("site done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Jobs < 0 {
		return errors.New("jobs must be >= 0")
	}
	return nil
}

type taskKey struct{}

// WithTask tags ctx with the task id so code below the worker can emit events.
func WithTask(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskKey{}, taskID)
}

// TaskFromContext returns the task id set by WithTask.
func TaskFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskKey{}).(string)
	return id, ok && id != ""
}
