package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/jobspy-server/internal/progress"
)

// ErrNotFound signals that no progress was recorded for a task.
var ErrNotFound = errors.New("progress record not found")

// ProgressRepository persists task progress events.
type ProgressRepository interface {
	// AppendEvents records events in order.
	AppendEvents(ctx context.Context, events []progress.Event) error
	// TaskEvents returns a task's events oldest first, or ErrNotFound.
	TaskEvents(ctx context.Context, taskID string) ([]progress.Event, error)
}
